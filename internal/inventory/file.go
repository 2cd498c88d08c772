package inventory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var _ Searcher = (*FileInventory)(nil)

// FileInventory searches a YAML (or JSON) list of machine records. The file
// is read on every search.
//
//	- name: web01
//	  fqdn: web01.example.org
//	  roles: [web]
//	  ec2:
//	    public_hostname: ec2-1-2-3-4.compute.amazonaws.com
type FileInventory struct {
	Path string
}

func NewFileInventory(path string) *FileInventory {
	return &FileInventory{Path: path}
}

func (f *FileInventory) Search(ctx context.Context, query string) ([]Record, error) {
	terms, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("inventory: read %s: %w", f.Path, err)
	}
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("inventory: parse %s: %w", f.Path, err)
	}

	var out []Record
	for _, m := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := recordFromMap(m)
		if MatchAll(terms, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

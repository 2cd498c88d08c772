// Package inventory provides the search side of target resolution: a query
// string goes in, machine records come out.
//
// Queries are whitespace separated "path:value" terms that must all match.
// value may contain * and ? globs and is compared case-insensitively. A bare
// term is shorthand for "name:term". An empty query or "*:*" matches every
// record. When the attribute holds a list, any element may match.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/andrej220/wexec/internal/attrpath"
)

var ErrInvalidQuery = errors.New("inventory: invalid query")

// Record is one machine as known to the inventory: its name plus an
// arbitrary attribute tree.
type Record struct {
	Name  string
	Attrs map[string]any
}

// Searcher runs a query against an inventory.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Record, error)
}

// Term is one "path:pattern" condition.
type Term struct {
	Path    attrpath.Path
	Pattern string
}

// ParseQuery splits a query into terms. A nil slice means "match all".
func ParseQuery(query string) ([]Term, error) {
	var terms []Term
	for _, field := range strings.Fields(query) {
		if field == "*:*" {
			continue
		}
		key, pattern, found := strings.Cut(field, ":")
		if !found {
			key, pattern = "name", field
		}
		if pattern == "" {
			return nil, fmt.Errorf("%w: %q has no value", ErrInvalidQuery, field)
		}
		p, err := attrpath.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidQuery, pattern)
		}
		terms = append(terms, Term{Path: p, Pattern: strings.ToLower(pattern)})
	}
	return terms, nil
}

// Match reports whether the record satisfies the term.
func (t Term) Match(r Record) bool {
	v, ok := t.Path.Lookup(r.Attrs)
	if !ok {
		return false
	}
	if list, isList := v.([]any); isList {
		for _, item := range list {
			if t.matchScalar(item) {
				return true
			}
		}
		return false
	}
	return t.matchScalar(v)
}

func (t Term) matchScalar(v any) bool {
	s, ok := attrpath.Scalar(v)
	if !ok {
		return false
	}
	matched, _ := path.Match(t.Pattern, strings.ToLower(s))
	return matched
}

// MatchAll reports whether every term matches r.
func MatchAll(terms []Term, r Record) bool {
	for _, t := range terms {
		if !t.Match(r) {
			return false
		}
	}
	return true
}

func recordFromMap(m map[string]any) Record {
	name, _ := attrpath.Scalar(m["name"])
	return Record{Name: name, Attrs: m}
}

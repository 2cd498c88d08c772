package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/andrej220/wexec/pkg/config/configstore"
	"gopkg.in/yaml.v3"
)

var _ configstore.ConfigStore = (*FileStore)(nil)

// FileStore keeps settings in a YAML file, or TOML when the path ends in .toml.
type FileStore struct {
	Path string
}

func New(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) isTOML() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".toml")
}

func (f *FileStore) Load(out any) error {
	if out == nil {
		return fmt.Errorf("Load: output parameter must not be nil")
	}

	bytes, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("Load: failed to read file %s: %w", f.Path, err)
	}

	if len(bytes) == 0 {
		return fmt.Errorf("Load: config file %s is empty", f.Path)
	}

	if f.isTOML() {
		if _, err := toml.Decode(string(bytes), out); err != nil {
			return fmt.Errorf("Load: failed to parse TOML in %s: %w", f.Path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(bytes, out); err != nil {
		return fmt.Errorf("Load: failed to parse YAML in %s: %w", f.Path, err)
	}
	return nil
}

func (f *FileStore) Save(in any) error {
	if in == nil {
		return fmt.Errorf("Save: input parameter must not be nil")
	}

	var (
		bytes []byte
		err   error
	)
	if f.isTOML() {
		bytes, err = toml.Marshal(in)
	} else {
		bytes, err = yaml.Marshal(in)
	}
	if err != nil {
		return fmt.Errorf("Save: failed to marshal %s: %w", f.Path, err)
	}

	// write to temp file first, then rename
	tmpPath := f.Path + ".tmp"
	if err := os.WriteFile(tmpPath, bytes, 0600); err != nil {
		return fmt.Errorf("Save: failed to write temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("Save: failed to replace %s with %s: %w", f.Path, tmpPath, err)
	}
	return nil
}

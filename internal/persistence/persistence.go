// Package persistence writes serialized run reports to disk.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrEmptyFilename = errors.New("empty filename")

type Serializer interface {
	Marshal(data any) ([]byte, error)
}

type Writer interface {
	Write(filename string, data []byte) error
}

type JSONSerializer struct {
	Prefix, Indent string
}

func (s JSONSerializer) Marshal(data any) ([]byte, error) {
	b, err := json.MarshalIndent(data, s.Prefix, s.Indent)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// FileWriter replaces filename atomically. Without Overwrite an existing
// file is an error.
type FileWriter struct {
	Overwrite bool
}

func (w FileWriter) Write(filename string, data []byte) error {
	if filename == "" {
		return ErrEmptyFilename
	}
	if _, err := os.Stat(filename); err == nil && !w.Overwrite {
		return fmt.Errorf("%s: %w", filename, os.ErrExist)
	}
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".wexec-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// Save serializes data and hands it to writer.
func Save(data any, filename string, serializer Serializer, writer Writer) error {
	b, err := serializer.Marshal(data)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	if err := writer.Write(filename, b); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

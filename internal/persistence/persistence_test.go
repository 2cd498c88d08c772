package persistence_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/wexec/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = "{\n    \"key\": \"value\"\n}\n"

type MockSerializer struct {
	Bytes []byte
	Err   error
}

func (s MockSerializer) Marshal(any) ([]byte, error) {
	return s.Bytes, s.Err
}

type MockWriter struct {
	Data map[string][]byte
	Err  error
}

func (w *MockWriter) Write(filename string, data []byte) error {
	if w.Data == nil {
		w.Data = make(map[string][]byte)
	}
	w.Data[filename] = data
	return w.Err
}

func TestSave(t *testing.T) {
	tests := []struct {
		name        string
		serializer  persistence.Serializer
		writer      *MockWriter
		expectedErr bool
	}{
		{
			name:       "valid input",
			serializer: MockSerializer{Bytes: []byte(sampleJSON)},
			writer:     &MockWriter{},
		},
		{
			name:        "serializer error",
			serializer:  MockSerializer{Err: errors.New("serialization failed")},
			writer:      &MockWriter{},
			expectedErr: true,
		},
		{
			name:        "writer error",
			serializer:  MockSerializer{Bytes: []byte(sampleJSON)},
			writer:      &MockWriter{Err: errors.New("write failed")},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := persistence.Save(map[string]string{"key": "value"}, "report.json", tt.serializer, tt.writer)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, sampleJSON, string(tt.writer.Data["report.json"]))
		})
	}
}

func TestJSONSerializer(t *testing.T) {
	w := &MockWriter{}
	err := persistence.Save(map[string]string{"key": "value"}, "out.json", persistence.JSONSerializer{Indent: "    "}, w)
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(w.Data["out.json"]))
}

func TestFileWriter(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "reports", "run.json")

	require.NoError(t, persistence.FileWriter{}.Write(filename, []byte("first")))
	got, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	err = persistence.FileWriter{}.Write(filename, []byte("second"))
	assert.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, persistence.FileWriter{Overwrite: true}.Write(filename, []byte("second")))
	got, err = os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(filename))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	assert.ErrorIs(t, persistence.FileWriter{}.Write("", nil), persistence.ErrEmptyFilename)
}

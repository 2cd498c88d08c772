package report

import (
	"context"
	"fmt"

	"github.com/andrej220/wexec/internal/persistence"
	"github.com/andrej220/wexec/pkg/models"
)

// FileSink writes the records of a run as one JSON document.
type FileSink struct {
	path       string
	serializer persistence.Serializer
	writer     persistence.Writer
}

type fileReport struct {
	Outcomes []models.OutcomeRecord `json:"outcomes"`
}

func NewFileSink(path string) *FileSink {
	return &FileSink{
		path:       path,
		serializer: persistence.JSONSerializer{Indent: "    "},
		writer:     persistence.FileWriter{Overwrite: true},
	}
}

func (f *FileSink) Publish(_ context.Context, records []models.OutcomeRecord) error {
	if err := persistence.Save(fileReport{Outcomes: records}, f.path, f.serializer, f.writer); err != nil {
		return fmt.Errorf("report file: %w", err)
	}
	return nil
}

func (f *FileSink) Close() error { return nil }

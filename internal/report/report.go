// Package report ships per-host outcome records to external sinks. Sink
// failures never influence the exit status of a run.
package report

import (
	"context"
	"errors"

	"github.com/andrej220/wexec/pkg/models"
)

type Sink interface {
	Publish(ctx context.Context, records []models.OutcomeRecord) error
	Close() error
}

// Multi fans records out to every sink.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, records []models.OutcomeRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

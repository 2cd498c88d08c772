package transport

import (
	"errors"
	"fmt"

	"github.com/andrej220/wexec/pkg/models"
)

var (
	ErrInvalidAuthProtocol  = errors.New("invalid authentication protocol")
	ErrUnencryptedNegotiate = errors.New("negotiate authentication over an unencrypted transport")
	ErrInvalidOption        = errors.New("invalid transport option")
)

// PolicyError is a fatal rejection of the declared connection options.
type PolicyError struct {
	Err    error
	Detail string
}

func (e *PolicyError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *PolicyError) Unwrap() error { return e.Err }

func (e *PolicyError) ExitCode() int { return models.ExitFatal }

func reject(err error, format string, args ...any) *PolicyError {
	return &PolicyError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

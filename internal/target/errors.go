package target

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andrej220/wexec/pkg/models"
)

var (
	ErrNoMatch          = errors.New("no nodes returned from search")
	ErrMissingAttribute = errors.New("nodes missing the connection attribute")
	ErrNoHosts          = errors.New("no hosts given")
)

// NoMatchError is returned when a search matches zero machines.
type NoMatchError struct {
	Query string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNoMatch, e.Query)
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatch }
func (e *NoMatchError) ExitCode() int { return models.ExitTargetResolution }

// MissingAttributeError lists every matched machine that had no usable
// value at Attribute.
type MissingAttributeError struct {
	Attribute string
	Hosts     []string
	Matched   int
}

func (e *MissingAttributeError) Error() string {
	noun := "node"
	if e.Matched != 1 {
		noun = "nodes"
	}
	return fmt.Sprintf("%d %s found, but %s not have the required attribute (%s) to establish the connection: %s",
		e.Matched, noun, doVerb(len(e.Hosts)), e.Attribute, strings.Join(e.Hosts, ", "))
}

func (e *MissingAttributeError) Unwrap() error { return ErrMissingAttribute }
func (e *MissingAttributeError) ExitCode() int { return models.ExitTargetResolution }

func doVerb(n int) string {
	if n == 1 {
		return "1 does"
	}
	return fmt.Sprintf("%d do", n)
}

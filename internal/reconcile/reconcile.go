// Package reconcile folds per-host outcomes into one process result.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/pkg/models"
)

// Policy is the return code allowlist plus the 401 suppression switch.
type Policy struct {
	Accepted            []int
	SuppressAuthFailure bool
	// User is only used in the authentication failure message.
	User string
}

// Accepts reports whether o counts as success under p.
func (p Policy) Accepts(o models.Outcome) bool {
	return o.Kind == models.ExitStatus && slices.Contains(p.accepted(), o.Code)
}

func (p Policy) accepted() []int {
	if len(p.Accepted) == 0 {
		return []int{models.ExitSuccess}
	}
	return p.Accepted
}

// ExitError terminates the invocation with Code.
type ExitError struct {
	Code  int
	Host  string
	Cause error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: exit %d: %v", e.Host, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: remote command exited with status %d", e.Host, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Cause }

func (e *ExitError) ExitCode() int { return e.Code }

type Reconciler struct {
	log lg.Logger
}

func New(log lg.Logger) *Reconciler {
	if log == nil {
		log = lg.Discard
	}
	return &Reconciler{log: log}
}

// Reconcile walks outcomes in order. The first outcome that terminates the
// invocation wins, so when several hosts fail the lowest index decides the
// exit code.
//
// A non-accepted exit status returns *ExitError with that status. A
// transport fault returns *ExitError with code 100, except a 401 under
// SuppressAuthFailure, which is remembered and returned as
// ProcessResult{401, false} with a nil error when nothing else terminates.
func (r *Reconciler) Reconcile(outcomes []models.Outcome, p Policy) (models.ProcessResult, error) {
	suppressed := false
	for _, o := range outcomes {
		host := o.Target.HostIdentifier
		switch o.Kind {
		case models.ExitStatus:
			if p.Accepts(o) {
				continue
			}
			r.log.Error("remote command failed", lg.String("host", host), lg.Int("exit_code", o.Code), lg.Ints("accepted", p.accepted()))
			return models.ProcessResult{ExitCode: o.Code}, &ExitError{Code: o.Code, Host: host}

		case models.TransportFault:
			if o.Code == models.StatusUnauthorized {
				msg := fmt.Sprintf("failed to authenticate to %s as %s", host, p.User)
				if p.SuppressAuthFailure {
					r.log.Info(msg, lg.String("host", host))
					suppressed = true
					continue
				}
				r.log.Error(msg, lg.String("host", host))
			} else {
				r.log.Error("transport fault", lg.String("host", host), lg.Int("status", o.Code), lg.Err(o.Err))
			}
			return models.ProcessResult{ExitCode: models.ExitTransportFault},
				&ExitError{Code: models.ExitTransportFault, Host: host, Cause: faultCause(o)}
		}
	}

	if suppressed {
		return models.ProcessResult{ExitCode: models.StatusUnauthorized}, nil
	}
	return models.ProcessResult{ExitCode: models.ExitSuccess, IsSuccess: true}, nil
}

func faultCause(o models.Outcome) error {
	if o.Err != nil {
		return o.Err
	}
	return fmt.Errorf("transport fault (http status %d)", o.Code)
}

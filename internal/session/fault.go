package session

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// FaultError is a failure at the session layer as opposed to the exit
// status of the remote command. Status is the HTTP status reported by the
// endpoint, or 0 when none was received.
type FaultError struct {
	Host   string
	Status int
	Err    error
}

func (e *FaultError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("%s: http status %d: %v", e.Host, e.Status, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Fault wraps err as a *FaultError for host. Errors that already are
// faults are returned unchanged.
func Fault(host string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FaultError
	if errors.As(err, &fe) {
		return err
	}
	return &FaultError{Host: host, Status: StatusOf(err), Err: err}
}

var statusPattern = regexp.MustCompile(`(?i)http (?:response )?error:? (\d{3})`)

// StatusOf extracts an HTTP status from err, or returns 0.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Status
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// NeverConnected reports whether err happened before a connection to the
// endpoint existed, so the command cannot have been submitted.
func NeverConnected(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) {
		return op.Op == "dial"
	}
	var dns *net.DNSError
	return errors.As(err, &dns)
}

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reserved process exit codes.
const (
	ExitSuccess          = 0
	ExitFatal            = 1
	ExitTargetResolution = 10
	ExitTransportFault   = 100
)

// StatusUnauthorized is the transport fault status that may be suppressed.
const StatusUnauthorized = 401

// TargetDescriptor identifies one machine to run the command on.
type TargetDescriptor struct {
	HostIdentifier  string `json:"host" bson:"host"`
	ResolvedAddress string `json:"address" bson:"address"`
}

func (t TargetDescriptor) String() string {
	if t.HostIdentifier == t.ResolvedAddress || t.HostIdentifier == "" {
		return t.ResolvedAddress
	}
	return fmt.Sprintf("%s (%s)", t.HostIdentifier, t.ResolvedAddress)
}

type OutcomeKind int

const (
	ExitStatus OutcomeKind = iota
	TransportFault
)

func (k OutcomeKind) String() string {
	switch k {
	case ExitStatus:
		return "exit_status"
	case TransportFault:
		return "transport_fault"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of running the command on one host.
// Code holds the remote exit status for ExitStatus and the HTTP status for
// TransportFault (0 when the fault carried no status).
type Outcome struct {
	Target TargetDescriptor
	Kind   OutcomeKind
	Code   int
	Err    error
}

func ExitStatusOutcome(t TargetDescriptor, code int) Outcome {
	return Outcome{Target: t, Kind: ExitStatus, Code: code}
}

func TransportFaultOutcome(t TargetDescriptor, httpStatus int, err error) Outcome {
	return Outcome{Target: t, Kind: TransportFault, Code: httpStatus, Err: err}
}

// ProcessResult is the single value derived from all outcomes.
type ProcessResult struct {
	ExitCode  int
	IsSuccess bool
}

// OutcomeRecord is what gets shipped to report sinks.
type OutcomeRecord struct {
	RunID      uuid.UUID `json:"run" bson:"run"`
	Host       string    `json:"host" bson:"host"`
	Address    string    `json:"address" bson:"address"`
	Kind       string    `json:"kind" bson:"kind"`
	Code       int       `json:"code" bson:"code"`
	Accepted   bool      `json:"accepted" bson:"accepted"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
}

// NewOutcomeRecord flattens an outcome for reporting. accepted tells
// whether the outcome counts as success under the active return code policy.
func NewOutcomeRecord(run uuid.UUID, o Outcome, accepted bool, at time.Time) OutcomeRecord {
	rec := OutcomeRecord{
		RunID:      run,
		Host:       o.Target.HostIdentifier,
		Address:    o.Target.ResolvedAddress,
		Kind:       o.Kind.String(),
		Code:       o.Code,
		Accepted:   accepted,
		FinishedAt: at.UTC(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}

package session

import (
	"context"
	"io"

	"github.com/andrej220/wexec/internal/transport"
)

// Opener creates a remote-management session for one host.
type Opener interface {
	Open(ctx context.Context, cfg transport.SessionConfig) (Session, error)
}

// Session runs a single command and reports the remote exit status.
// Transport level failures are returned as *FaultError.
type Session interface {
	Run(ctx context.Context, command string, stdout, stderr io.Writer) (int, error)
	Close() error
}

package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andrej220/wexec/internal/transport"
	"github.com/masterzen/winrm"
)

const (
	locale       = "en-US"
	envelopeSize = 153600
)

// WinRM opens sessions with the masterzen/winrm client.
//
// Basic-only sessions authenticate with HTTP basic auth. Every other
// combination, including the native negotiate transport and kerberos,
// goes through NTLM negotiate since the client has no SSPI or ticket
// support.
type WinRM struct{}

func NewWinRM() *WinRM { return &WinRM{} }

func (w *WinRM) Open(_ context.Context, cfg transport.SessionConfig) (Session, error) {
	var caCert []byte
	if cfg.TrustAnchorPath != "" {
		pem, err := os.ReadFile(cfg.TrustAnchorPath)
		if err != nil {
			return nil, fmt.Errorf("read trust anchor: %w", err)
		}
		caCert = pem
	}

	timeout := time.Duration(cfg.OperationTimeoutSeconds) * time.Second
	endpoint := winrm.NewEndpoint(cfg.Host, cfg.Port, cfg.HTTPS(), cfg.NoPeerVerification, caCert, nil, nil, timeout)

	params := winrm.NewParameters(fmt.Sprintf("PT%dS", cfg.OperationTimeoutSeconds), locale, envelopeSize)
	if !cfg.BasicAuthOnly {
		params.TransportDecorator = func() winrm.Transporter { return &winrm.ClientNTLM{} }
	}

	client, err := winrm.NewClientWithParameters(endpoint, cfg.User, cfg.Password, params)
	if err != nil {
		return nil, Fault(cfg.Host, err)
	}
	return &winrmSession{host: cfg.Host, client: client}, nil
}

type winrmSession struct {
	host   string
	client *winrm.Client
}

func (s *winrmSession) Run(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	code, err := s.client.RunWithContext(ctx, command, stdout, stderr)
	if err != nil {
		return code, Fault(s.host, err)
	}
	return code, nil
}

// Close is a no-op: RunWithContext creates and deletes its own remote shell.
func (s *winrmSession) Close() error { return nil }

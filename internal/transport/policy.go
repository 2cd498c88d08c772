// Package transport derives per-host session parameters from the declared
// connection options. Nothing here touches the network.
package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the connection mode used to reach a host.
type Kind int

const (
	Plaintext Kind = iota
	TLS
	// NegotiateNative is the SSPI backed negotiate transport available on
	// Windows workstations.
	NegotiateNative
)

func (k Kind) String() string {
	switch k {
	case TLS:
		return "tls"
	case NegotiateNative:
		return "negotiate-native"
	default:
		return "plaintext"
	}
}

const (
	AuthBasic     = "basic"
	AuthNegotiate = "negotiate"
	AuthKerberos  = "kerberos"

	VerifyPeer = "verify_peer"
	VerifyNone = "verify_none"

	DefaultPlaintextPort  = 5985
	DefaultTLSPort        = 5986
	DefaultTimeoutSeconds = 1800
)

const (
	warnVerifyNone = "SSL validation of HTTPS requests for the WinRM transport is disabled. " +
		"HTTPS WinRM connections are still encrypted, but the client cannot detect forged replies or man in the middle attacks."
	warnNegotiatePlaintext = "The '--auth-protocol negotiate' option is not supported on this workstation when '--transport' is plaintext."
	warnNegotiateHint      = "Use '--transport tls' or '--auth-protocol basic' instead."
)

// Options is the connection part of the assembled settings.
type Options struct {
	AuthProtocol            string
	Transport               string
	User                    string
	Password                string
	Port                    *int   `validate:"omitempty,min=1,max=65535"`
	OperationTimeoutMinutes *int   `validate:"omitempty,min=1"`
	TLSVerifyMode           string `validate:"omitempty,oneof=verify_peer verify_none"`
	TrustAnchorPath         string
	// WorkstationWindows reports whether this process runs on a Windows
	// family host. Callers pass runtime.GOOS == "windows".
	WorkstationWindows bool
}

// Policy holds the host independent result of the decision table.
type Policy struct {
	transport             Kind
	port                  int
	user                  string
	password              string
	timeoutSeconds        int
	noPeerVerification    bool
	basicAuthOnly         bool
	disableIntegratedAuth bool
	trustAnchorPath       string
}

var validate = validator.New()

// NewPolicy evaluates opts. Warnings are non fatal messages the caller is
// expected to show to the user; they are returned even when err is set.
func NewPolicy(opts Options) (*Policy, []string, error) {
	var warnings []string

	auth := strings.ToLower(strings.TrimSpace(opts.AuthProtocol))
	if err := validate.Var(auth, "required,oneof=basic negotiate kerberos"); err != nil {
		return nil, nil, reject(ErrInvalidAuthProtocol, "%q is not one of basic, negotiate, kerberos", opts.AuthProtocol)
	}
	if err := validate.Struct(opts); err != nil {
		return nil, nil, optionError(err)
	}

	kind, known := parseKind(opts.Transport)
	if !known {
		warnings = append(warnings, fmt.Sprintf("unknown transport %q, using plaintext", opts.Transport))
	}

	p := &Policy{
		user:            opts.User,
		password:        opts.Password,
		trustAnchorPath: opts.TrustAnchorPath,
		basicAuthOnly:   auth == AuthBasic,
	}

	switch auth {
	case AuthNegotiate:
		switch {
		case kind == TLS:
		case opts.WorkstationWindows:
			kind = NegotiateNative
		default:
			warnings = append(warnings, warnNegotiatePlaintext, warnNegotiateHint)
			return nil, warnings, reject(ErrUnencryptedNegotiate, "use tls transport or basic authentication")
		}
	case AuthBasic, AuthKerberos:
		// never take the native negotiate path
	}
	p.transport = kind
	p.disableIntegratedAuth = kind != NegotiateNative

	switch {
	case opts.Port != nil:
		p.port = *opts.Port
	case kind == TLS:
		p.port = DefaultTLSPort
	default:
		p.port = DefaultPlaintextPort
	}

	p.timeoutSeconds = DefaultTimeoutSeconds
	if opts.OperationTimeoutMinutes != nil {
		p.timeoutSeconds = *opts.OperationTimeoutMinutes * 60
	}

	verifyNone := opts.TLSVerifyMode == VerifyNone
	hasAnchor := strings.TrimSpace(opts.TrustAnchorPath) != ""
	p.noPeerVerification = verifyNone && !hasAnchor
	if p.noPeerVerification {
		warnings = append(warnings, warnVerifyNone)
	}

	return p, warnings, nil
}

// Derive is NewPolicy followed by SessionConfig for a single host.
func Derive(opts Options, host string) (SessionConfig, []string, error) {
	p, warnings, err := NewPolicy(opts)
	if err != nil {
		return SessionConfig{}, warnings, err
	}
	return p.SessionConfig(host), warnings, nil
}

// SessionConfig stamps the derived parameters with a target address.
func (p *Policy) SessionConfig(host string) SessionConfig {
	return SessionConfig{
		Transport:               p.transport,
		Host:                    host,
		Port:                    p.port,
		User:                    p.user,
		Password:                p.password,
		OperationTimeoutSeconds: p.timeoutSeconds,
		NoPeerVerification:      p.noPeerVerification,
		BasicAuthOnly:           p.basicAuthOnly,
		DisableIntegratedAuth:   p.disableIntegratedAuth,
		TrustAnchorPath:         p.trustAnchorPath,
	}
}

func parseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "plaintext":
		return Plaintext, true
	case "tls", "ssl":
		return TLS, true
	default:
		return Plaintext, false
	}
}

func optionError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return reject(ErrInvalidOption, "%v", err)
	}
	fe := verrs[0]
	return reject(ErrInvalidOption, "%s=%v fails %q", strings.ToLower(fe.Field()), fieldValue(fe), fe.Tag())
}

func fieldValue(fe validator.FieldError) any {
	if p, ok := fe.Value().(*int); ok && p != nil {
		return *p
	}
	return fe.Value()
}

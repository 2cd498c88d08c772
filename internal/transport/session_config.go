package transport

import (
	"fmt"
	"net"
	"strconv"
)

// SessionConfig is everything needed to open one session to one host.
// It is created by Policy.SessionConfig and never modified afterwards.
type SessionConfig struct {
	Transport               Kind
	Host                    string
	Port                    int
	User                    string
	Password                string
	OperationTimeoutSeconds int
	NoPeerVerification      bool
	BasicAuthOnly           bool
	DisableIntegratedAuth   bool
	TrustAnchorPath         string
}

// HTTPS reports whether the session is carried over TLS.
func (c SessionConfig) HTTPS() bool { return c.Transport == TLS }

// URL is the management endpoint of the host.
func (c SessionConfig) URL() string {
	scheme := "http"
	if c.HTTPS() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/wsman", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// String never includes the password.
func (c SessionConfig) String() string {
	pw := ""
	if c.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("%s transport=%s user=%s password=%s timeout=%ds no_peer_verification=%t basic_auth_only=%t disable_integrated_auth=%t",
		c.URL(), c.Transport, c.User, pw, c.OperationTimeoutSeconds, c.NoPeerVerification, c.BasicAuthOnly, c.DisableIntegratedAuth)
}

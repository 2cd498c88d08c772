package session

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return "endpoint said no" }
func (e statusErr) StatusCode() int { return int(e) }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("connection reset by peer"), want: 0},
		{name: "http error", err: errors.New("http error 401: "), want: 401},
		{name: "http response error", err: errors.New("http response error: 500 - invalid content type"), want: 500},
		{name: "wrapped", err: fmt.Errorf("run: %w", errors.New("http error 403: forbidden")), want: 403},
		{name: "status coder", err: fmt.Errorf("post: %w", statusErr(502)), want: 502},
		{name: "fault", err: &FaultError{Host: "h", Status: 401, Err: errors.New("x")}, want: 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestFault(t *testing.T) {
	assert.NoError(t, Fault("h", nil))

	err := Fault("web01", errors.New("http error 401: "))
	var fe *FaultError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 401, fe.Status)
	assert.Equal(t, "web01", fe.Host)
	assert.Contains(t, err.Error(), "http status 401")

	again := Fault("other", err)
	assert.Same(t, err, again)
}

func TestNeverConnected(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.True(t, NeverConnected(fmt.Errorf("post: %w", dial)))
	assert.True(t, NeverConnected(&net.DNSError{Err: "no such host", Name: "nowhere"}))

	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
	assert.False(t, NeverConnected(read))
	assert.False(t, NeverConnected(errors.New("http error 500: ")))
}

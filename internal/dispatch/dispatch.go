// Package dispatch runs one command on many hosts and collects one outcome
// per host.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/internal/session"
	"github.com/andrej220/wexec/internal/transport"
	"github.com/andrej220/wexec/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// ConfigSource produces the session parameters for one address.
// *transport.Policy implements it.
type ConfigSource interface {
	SessionConfig(host string) transport.SessionConfig
}

type Dispatcher struct {
	opener      session.Opener
	log         lg.Logger
	concurrency int
	retries     int
	newBackOff  func() backoff.BackOff
	stdout      io.Writer
	stderr      io.Writer
	outMu       sync.Mutex
}

type Option func(*Dispatcher)

// WithConcurrency bounds the number of parallel sessions. n <= 0 means one
// worker per target.
func WithConcurrency(n int) Option { return func(d *Dispatcher) { d.concurrency = n } }

// WithConnectRetries retries sessions that failed before a connection was
// established. A failure after that point is never retried.
func WithConnectRetries(n int) Option { return func(d *Dispatcher) { d.retries = n } }

func WithBackOff(f func() backoff.BackOff) Option { return func(d *Dispatcher) { d.newBackOff = f } }

func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Dispatcher) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

func WithLogger(l lg.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func New(opener session.Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		opener:     opener,
		log:        lg.Discard,
		newBackOff: defaultBackOff,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func defaultBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
}

// Dispatch runs command on every target. Outcomes are returned in target
// order regardless of completion order. A fault on one host never affects
// the others. If ctx is cancelled, in-flight sessions abort and the context
// error is returned instead of outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []models.TargetDescriptor, configs ConfigSource, command string) ([]models.Outcome, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	outcomes := make([]models.Outcome, len(targets))

	limit := d.concurrency
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = d.DispatchOne(ctx, t, configs.SessionConfig(t.ResolvedAddress), command)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch aborted: %w", err)
	}
	return outcomes, nil
}

// DispatchOne opens a session to target, runs command and records the
// outcome. It never returns an error: failures become TransportFault
// outcomes.
func (d *Dispatcher) DispatchOne(ctx context.Context, target models.TargetDescriptor, cfg transport.SessionConfig, command string) models.Outcome {
	log := d.log.With(lg.String("host", target.HostIdentifier), lg.String("url", cfg.URL()))
	log.Debug("opening session", lg.String("transport", cfg.Transport.String()), lg.Int("timeout_s", cfg.OperationTimeoutSeconds))

	stdout := newLineWriter(&d.outMu, d.stdout, target.HostIdentifier)
	stderr := newLineWriter(&d.outMu, d.stderr, target.HostIdentifier)
	defer stdout.Flush()
	defer stderr.Flush()

	b := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), uint64(max(d.retries, 0))), ctx)
	attempt := 0
	code, err := backoff.RetryWithData(func() (int, error) {
		attempt++
		code, err := d.runOnce(ctx, cfg, command, stdout, stderr)
		if err != nil && !session.NeverConnected(err) {
			return code, backoff.Permanent(err)
		}
		if err != nil {
			log.Warn("connection failed", lg.Int("attempt", attempt), lg.Err(err))
		}
		return code, err
	}, b)

	if err != nil {
		fault := session.Fault(target.HostIdentifier, err)
		status := session.StatusOf(fault)
		log.Debug("transport fault", lg.Int("status", status), lg.Err(err))
		return models.TransportFaultOutcome(target, status, fault)
	}
	log.Debug("command finished", lg.Int("exit_code", code))
	return models.ExitStatusOutcome(target, code)
}

func (d *Dispatcher) runOnce(ctx context.Context, cfg transport.SessionConfig, command string, stdout, stderr io.Writer) (int, error) {
	timeout := time.Duration(cfg.OperationTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = transport.DefaultTimeoutSeconds * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := d.opener.Open(sctx, cfg)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return s.Run(sctx, command, stdout, stderr)
}

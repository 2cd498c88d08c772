// Package app runs one invocation: resolve targets, derive session
// parameters, dispatch, report and reconcile.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrej220/wexec/internal/dispatch"
	"github.com/andrej220/wexec/internal/inventory"
	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/internal/reconcile"
	"github.com/andrej220/wexec/internal/report"
	"github.com/andrej220/wexec/internal/session"
	"github.com/andrej220/wexec/internal/target"
	"github.com/andrej220/wexec/internal/transport"
	"github.com/andrej220/wexec/pkg/config"
	"github.com/andrej220/wexec/pkg/models"
	"github.com/google/uuid"
)

const reportTimeout = 15 * time.Second

// Invocation is what the user asked for on the command line.
type Invocation struct {
	// Query is an inventory query, or a host list in manual mode.
	Query   string
	Command string
}

// Deps are the collaborators of an App. Only Opener is required.
type Deps struct {
	Searcher inventory.Searcher
	Opener   session.Opener
	Sink     report.Sink
	Logger   lg.Logger
	// DispatchOptions are passed to the dispatcher after the ones derived
	// from settings.
	DispatchOptions []dispatch.Option
	// Windows tells whether this process runs on a Windows family host.
	Windows bool
	Now     func() time.Time
}

type App struct {
	settings config.Settings
	deps     Deps
	log      lg.Logger
}

func New(settings config.Settings, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = lg.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{settings: settings, deps: deps, log: deps.Logger}
}

// Run executes inv. The returned error, if any, carries the process exit
// status through an ExitCode method; see ExitStatus.
func (a *App) Run(ctx context.Context, inv Invocation) (models.ProcessResult, error) {
	s := a.settings
	run := uuid.New()
	log := a.log.With(lg.String("run", run.String()))
	ctx = lg.Attach(ctx, log)

	if err := config.Validate(s); err != nil {
		return models.ProcessResult{ExitCode: models.ExitFatal}, err
	}

	policy, warnings, err := transport.NewPolicy(transportOptions(s, a.deps.Windows))
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return models.ProcessResult{ExitCode: models.ExitFatal}, err
	}

	targets, err := target.NewResolver(a.deps.Searcher).Resolve(ctx, target.Request{
		Query:     inv.Query,
		Manual:    s.Manual,
		Attribute: s.Attribute,
	})
	if err != nil {
		return models.ProcessResult{ExitCode: exitCodeOf(err)}, err
	}
	log.Info("running command", lg.Int("hosts", len(targets)), lg.String("attribute", s.Attribute))

	opts := append([]dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithConcurrency(s.Concurrency),
		dispatch.WithConnectRetries(s.ConnectRetries),
	}, a.deps.DispatchOptions...)
	outcomes, err := dispatch.New(a.deps.Opener, opts...).Dispatch(ctx, targets, policy, inv.Command)
	if err != nil {
		return models.ProcessResult{ExitCode: models.ExitFatal}, err
	}

	rp := reconcile.Policy{
		Accepted:            s.AcceptedReturnCodes,
		SuppressAuthFailure: s.SuppressAuthFailure,
		User:                s.User,
	}
	a.publish(ctx, log, run, outcomes, rp)

	return reconcile.New(log).Reconcile(outcomes, rp)
}

func (a *App) publish(ctx context.Context, log lg.Logger, run uuid.UUID, outcomes []models.Outcome, rp reconcile.Policy) {
	if a.deps.Sink == nil {
		return
	}
	at := a.deps.Now()
	records := make([]models.OutcomeRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = models.NewOutcomeRecord(run, o, rp.Accepts(o), at)
	}

	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := a.deps.Sink.Publish(ctx, records); err != nil {
		log.Warn("failed to report outcomes", lg.Err(err))
	}
}

func transportOptions(s config.Settings, windows bool) transport.Options {
	return transport.Options{
		AuthProtocol:            s.AuthProtocol,
		Transport:               s.Transport,
		User:                    s.User,
		Password:                s.Password,
		Port:                    s.Port,
		OperationTimeoutMinutes: s.OperationTimeoutMinutes,
		TLSVerifyMode:           s.TLSVerifyMode,
		TrustAnchorPath:         s.TrustAnchorPath,
		WorkstationWindows:      windows,
	}
}

// ExitStatus maps the result of Run onto a process exit status. A
// suppressed authentication failure is not a process status and maps to 0.
func ExitStatus(res models.ProcessResult, err error) int {
	if err != nil {
		return exitCodeOf(err)
	}
	if res.ExitCode == models.StatusUnauthorized {
		return models.ExitSuccess
	}
	return res.ExitCode
}

func exitCodeOf(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return models.ExitFatal
}

// Describe renders err for the final diagnostic line.
func Describe(err error) string {
	if errors.Is(err, context.Canceled) {
		return "interrupted"
	}
	return fmt.Sprint(err)
}

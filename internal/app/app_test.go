package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andrej220/wexec/internal/dispatch"
	"github.com/andrej220/wexec/internal/inventory"
	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/internal/report"
	"github.com/andrej220/wexec/internal/session"
	"github.com/andrej220/wexec/internal/transport"
	"github.com/andrej220/wexec/pkg/config"
	"github.com/andrej220/wexec/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type result struct {
	code int
	err  error
}

type fakeOpener struct {
	mu      sync.Mutex
	results map[string]result
	opened  []transport.SessionConfig
}

func (f *fakeOpener) Open(_ context.Context, cfg transport.SessionConfig) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, cfg)
	return fakeSession(f.results[cfg.Host]), nil
}

type fakeSession result

func (s fakeSession) Run(ctx context.Context, _ string, _, _ io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.code, s.err
}

func (fakeSession) Close() error { return nil }

type staticSearcher []inventory.Record

func (s staticSearcher) Search(context.Context, string) ([]inventory.Record, error) {
	return s, nil
}

type recordingSink struct {
	records []models.OutcomeRecord
	err     error
}

func (r *recordingSink) Publish(_ context.Context, recs []models.OutcomeRecord) error {
	r.records = append(r.records, recs...)
	return r.err
}

func (r *recordingSink) Close() error { return nil }

func manualSettings(overlays ...config.Overlay) config.Settings {
	manual, proto := true, "basic"
	base := config.Assemble(config.Defaults(), config.Overlay{Manual: &manual, AuthProtocol: &proto})
	return config.Assemble(base, overlays...)
}

func newApp(t *testing.T, s config.Settings, op *fakeOpener, deps Deps) (*App, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	deps.Opener = op
	deps.Logger = lg.NewZap(zap.New(core))
	deps.DispatchOptions = append(deps.DispatchOptions, dispatch.WithOutput(io.Discard, io.Discard))
	return New(s, deps), logs
}

func TestRunExitStatuses(t *testing.T) {
	tests := []struct {
		name     string
		results  map[string]result
		overlay  config.Overlay
		wantExit int
	}{
		{
			name:     "all succeed",
			results:  map[string]result{"a": {code: 0}, "b": {code: 0}},
			wantExit: 0,
		},
		{
			name:     "accepted return code",
			results:  map[string]result{"a": {code: 53}, "b": {code: 0}},
			overlay:  config.Overlay{AcceptedReturnCodes: []int{0, 53}},
			wantExit: 0,
		},
		{
			name:     "remote failure propagates",
			results:  map[string]result{"a": {code: 0}, "b": {code: 7}},
			wantExit: 7,
		},
		{
			name:     "transport fault",
			results:  map[string]result{"a": {err: errors.New("http error 500: ")}, "b": {code: 0}},
			wantExit: 100,
		},
		{
			name:     "auth failure",
			results:  map[string]result{"a": {err: errors.New("http error 401: ")}, "b": {code: 0}},
			wantExit: 100,
		},
		{
			name:     "suppressed auth failure",
			results:  map[string]result{"a": {err: errors.New("http error 401: ")}, "b": {code: 0}},
			overlay:  config.Overlay{SuppressAuthFailure: boolPtr(true)},
			wantExit: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newApp(t, manualSettings(tt.overlay), &fakeOpener{results: tt.results}, Deps{})
			res, err := a.Run(context.Background(), Invocation{Query: "a b", Command: "hostname"})
			assert.Equal(t, tt.wantExit, ExitStatus(res, err))
		})
	}
}

func TestRunSuppressedAuthFailureValue(t *testing.T) {
	s := manualSettings(config.Overlay{SuppressAuthFailure: boolPtr(true)})
	a, _ := newApp(t, s, &fakeOpener{results: map[string]result{"a": {err: errors.New("http error 401: ")}}}, Deps{})

	res, err := a.Run(context.Background(), Invocation{Query: "a", Command: "hostname"})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessResult{ExitCode: 401, IsSuccess: false}, res)
}

func TestRunRejectsUnencryptedNegotiate(t *testing.T) {
	proto := "negotiate"
	s := manualSettings(config.Overlay{AuthProtocol: &proto})
	op := &fakeOpener{}
	a, logs := newApp(t, s, op, Deps{Windows: false})

	res, err := a.Run(context.Background(), Invocation{Query: "a", Command: "hostname"})
	assert.ErrorIs(t, err, transport.ErrUnencryptedNegotiate)
	assert.Equal(t, 1, ExitStatus(res, err))
	assert.Empty(t, op.opened, "command never runs")
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestRunNegotiateOnWindowsUsesNativeTransport(t *testing.T) {
	proto := "negotiate"
	s := manualSettings(config.Overlay{AuthProtocol: &proto})
	op := &fakeOpener{results: map[string]result{"a": {}}}
	a, _ := newApp(t, s, op, Deps{Windows: true})

	_, err := a.Run(context.Background(), Invocation{Query: "a", Command: "hostname"})
	require.NoError(t, err)
	require.Len(t, op.opened, 1)
	assert.Equal(t, transport.NegotiateNative, op.opened[0].Transport)
	assert.False(t, op.opened[0].DisableIntegratedAuth)
}

func TestRunVerifyNoneWarns(t *testing.T) {
	tls, mode := "tls", "verify_none"
	s := manualSettings(config.Overlay{Transport: &tls, TLSVerifyMode: &mode})
	op := &fakeOpener{results: map[string]result{"a": {}}}
	a, logs := newApp(t, s, op, Deps{})

	_, err := a.Run(context.Background(), Invocation{Query: "a", Command: "hostname"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.True(t, op.opened[0].NoPeerVerification)
}

func TestRunSearchMissingAttribute(t *testing.T) {
	manual := false
	s := manualSettings(config.Overlay{Manual: &manual})
	op := &fakeOpener{}
	searcher := staticSearcher{
		{Name: "foo", Attrs: map[string]any{"name": "foo"}},
		{Name: "bar", Attrs: map[string]any{"name": "bar", "fqdn": "bar.example.org"}},
	}
	a, _ := newApp(t, s, op, Deps{Searcher: searcher})

	res, err := a.Run(context.Background(), Invocation{Query: "*:*", Command: "hostname"})
	assert.Equal(t, 10, ExitStatus(res, err))
	assert.Contains(t, err.Error(), "foo")
	assert.Empty(t, op.opened)
}

func TestRunSearchResolvesAddresses(t *testing.T) {
	manual, attr := false, "ipaddress"
	s := manualSettings(config.Overlay{Manual: &manual, Attribute: &attr})
	op := &fakeOpener{results: map[string]result{"10.0.0.1": {}}}
	searcher := staticSearcher{{Name: "foo", Attrs: map[string]any{"ipaddress": "10.0.0.1"}}}
	a, _ := newApp(t, s, op, Deps{Searcher: searcher})

	res, err := a.Run(context.Background(), Invocation{Query: "name:foo", Command: "hostname"})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	require.Len(t, op.opened, 1)
	assert.Equal(t, "10.0.0.1", op.opened[0].Host)
}

func TestRunPublishesOutcomes(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	s := manualSettings(config.Overlay{AcceptedReturnCodes: []int{0, 53}})
	op := &fakeOpener{results: map[string]result{"a": {code: 53}, "b": {code: 0}}}
	a, logs := newApp(t, s, op, Deps{Sink: sink})

	res, err := a.Run(context.Background(), Invocation{Query: "a b", Command: "hostname"})
	require.NoError(t, err, "sink failures never change the outcome")
	assert.True(t, res.IsSuccess)

	require.Len(t, sink.records, 2)
	assert.Equal(t, sink.records[0].RunID, sink.records[1].RunID)
	assert.Equal(t, "a", sink.records[0].Host)
	assert.Equal(t, 53, sink.records[0].Code)
	assert.True(t, sink.records[0].Accepted)
	assert.Equal(t, 1, logs.FilterMessage("failed to report outcomes").Len())
}

func TestRunCancelled(t *testing.T) {
	sink := &recordingSink{}
	op := &fakeOpener{results: map[string]result{"a": {}}}
	a, _ := newApp(t, manualSettings(), op, Deps{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := a.Run(ctx, Invocation{Query: "a", Command: "hostname"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ExitStatus(res, err))
	assert.Empty(t, sink.records, "no reconciliation or reporting after cancel")
	assert.Equal(t, "interrupted", Describe(err))
}

func TestRunInvalidSettings(t *testing.T) {
	attr := ""
	a, _ := newApp(t, manualSettings(config.Overlay{Attribute: &attr}), &fakeOpener{}, Deps{})
	res, err := a.Run(context.Background(), Invocation{Query: "a", Command: "hostname"})
	assert.Error(t, err)
	assert.Equal(t, 1, ExitStatus(res, err))
}

func TestBuildSink(t *testing.T) {
	sink, err := BuildSink(config.ReportConfig{})
	require.NoError(t, err)
	assert.Nil(t, sink)

	sink, err = BuildSink(config.ReportConfig{File: filepath.Join(t.TempDir(), "out.json")})
	require.NoError(t, err)
	require.IsType(t, report.Multi{}, sink)
	assert.Len(t, sink.(report.Multi), 1)
	assert.NoError(t, sink.Close())
}

func TestBuildSearcher(t *testing.T) {
	s, closeFn, err := BuildSearcher(config.InventoryConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, closeFn())

	s, _, err = BuildSearcher(config.InventoryConfig{Kind: "file", Path: "nodes.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &inventory.FileInventory{}, s)

	_, _, err = BuildSearcher(config.InventoryConfig{Kind: "ldap"})
	assert.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }

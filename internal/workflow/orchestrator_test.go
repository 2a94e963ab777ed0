package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"srmsync/internal/changes"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/notifications"
	"srmsync/internal/procrun"
	"srmsync/internal/services"
	"srmsync/internal/services/srm"
	"srmsync/internal/synccache"
)

var (
	pluginL1 = uuid.MustParse("cb91dfc9-b977-43bf-8e70-55f46e410fab")
	pluginL2 = uuid.MustParse("aebe8b7c-6dc3-4a66-af31-e7375c6b5e9e")

	g1 = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	g2 = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	g3 = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	g4 = uuid.MustParse("00000000-0000-0000-0000-000000000004")
)

type fakeInstaller struct {
	err   error
	calls int
}

func (f *fakeInstaller) Ensure(context.Context) (bool, error) {
	f.calls++
	return false, f.err
}

type fakeWriter struct {
	all     []library.Group
	changed []library.Group
	err     error
}

func (f *fakeWriter) Write(all []library.Group, changed []library.Group) (srm.Artifacts, error) {
	f.all, f.changed = all, changed
	if f.err != nil {
		return srm.Artifacts{}, f.err
	}
	ids := make([]string, 0, len(changed))
	for _, group := range changed {
		ids = append(ids, srm.ParserID(group.Library.Key()))
	}
	return srm.Artifacts{ParserIDs: ids}, nil
}

type fakeTool struct {
	mu        sync.Mutex
	enableIDs [][]string
	adds      int
	enable    procrun.Outcome
	add       procrun.Outcome
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakeTool) Enable(_ context.Context, ids []string) procrun.Result {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableIDs = append(f.enableIDs, append([]string(nil), ids...))
	return result(f.enable)
}

func (f *fakeTool) Add(context.Context) procrun.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	return result(f.add)
}

func (f *fakeTool) invocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enableIDs) + f.adds
}

func result(outcome procrun.Outcome) procrun.Result {
	switch outcome {
	case "", procrun.Success:
		return procrun.Result{Outcome: procrun.Success}
	case procrun.TimedOut:
		return procrun.Result{Outcome: procrun.TimedOut, ExitCode: -1}
	default:
		return procrun.Result{Outcome: procrun.Failure, ExitCode: 2}
	}
}

type fakeSteam struct {
	running bool
	stopErr error
	stops   int
	starts  int
}

func (f *fakeSteam) IsRunning(context.Context) (bool, error) { return f.running, nil }

func (f *fakeSteam) Stop(context.Context) error {
	f.stops++
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeSteam) Start(context.Context) error {
	f.starts++
	f.running = true
	return nil
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) list() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

type memHistory struct {
	sessions []history.Session
}

func (m *memHistory) Record(_ context.Context, s history.Session) error {
	m.sessions = append(m.sessions, s)
	return nil
}

// countingConfirmer answers like StaticConfirmer and counts each gate.
type countingConfirmer struct {
	StaticConfirmer
	syncAsked, stopAsked, restartAsked int
}

func (c *countingConfirmer) ConfirmSync(ctx context.Context, changed []changes.Change) bool {
	c.syncAsked++
	return c.StaticConfirmer.ConfirmSync(ctx, changed)
}

func (c *countingConfirmer) ConfirmStopSteam(ctx context.Context) bool {
	c.stopAsked++
	return c.StaticConfirmer.ConfirmStopSteam(ctx)
}

func (c *countingConfirmer) ConfirmRestartSteam(ctx context.Context) bool {
	c.restartAsked++
	return c.StaticConfirmer.ConfirmRestartSteam(ctx)
}

type fixture struct {
	cache     *synccache.Store
	source    library.StaticSource
	installer *fakeInstaller
	writer    *fakeWriter
	tool      *fakeTool
	steam     *fakeSteam
	notifier  *recordingNotifier
	history   *memHistory
	lockPath  string
	registry  *prometheus.Registry
	orch      *Orchestrator
}

func newFixture(t *testing.T, games ...library.Game) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		cache:     synccache.NewStore(filepath.Join(dir, "cache"), logging.NewNop()),
		source:    library.StaticSource(games),
		installer: &fakeInstaller{},
		writer:    &fakeWriter{},
		tool:      &fakeTool{},
		steam:     &fakeSteam{},
		notifier:  &recordingNotifier{},
		history:   &memHistory{},
		lockPath:  filepath.Join(dir, "sync.lock"),
		registry:  prometheus.NewRegistry(),
	}
	f.build()
	return f
}

func (f *fixture) build() {
	f.orch = NewOrchestrator(Deps{
		Source:    f.source,
		Detector:  changes.NewDetector(f.cache, logging.NewNop()),
		Installer: f.installer,
		Writer:    f.writer,
		Tool:      f.tool,
		Steam:     f.steam,
		Notifier:  f.notifier,
		History:   f.history,
		Metrics:   NewMetrics(f.registry),
		LockPath:  f.lockPath,
	}, logging.NewNop())
}

func (f *fixture) run(confirmer Confirmer) Report {
	return f.orch.Run(context.Background(), Request{Trigger: "test", Confirmer: confirmer})
}

func (f *fixture) cached(t *testing.T, plugin uuid.UUID) (string, bool) {
	t.Helper()
	fp, ok, err := f.cache.Get(plugin.String())
	if err != nil {
		t.Fatalf("cache Get: %v", err)
	}
	return fp, ok
}

func accept() Confirmer {
	return StaticConfirmer{Sync: true, StopSteam: true, RestartSteam: true}
}

func l1Games() []library.Game {
	return []library.Game{
		{ID: g3, Name: "Gamma", PluginID: pluginL1},
		{ID: g1, Name: "Alpha", PluginID: pluginL1},
		{ID: g2, Name: "Beta", PluginID: pluginL1},
	}
}

func TestFirstSyncCommitsFingerprintAndSecondIsNoop(t *testing.T) {
	f := newFixture(t, l1Games()...)

	report := f.run(accept())
	if report.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s (err %v)", report.Outcome, report.Err)
	}
	want := strings.Join([]string{g1.String(), g2.String(), g3.String()}, ",")
	if fp, ok := f.cached(t, pluginL1); !ok || fp != want {
		t.Fatalf("cached fingerprint = %q, %v; want %q", fp, ok, want)
	}
	if len(f.tool.enableIDs) != 1 || f.tool.adds != 1 {
		t.Fatalf("enable=%v adds=%d", f.tool.enableIDs, f.tool.adds)
	}
	if got := f.tool.enableIDs[0]; len(got) != 1 || got[0] != srm.ParserID(pluginL1.String()) {
		t.Fatalf("enabled parsers = %v", got)
	}
	events := f.notifier.list()
	if len(events) != 1 || events[0].event != notifications.EventSyncCompleted {
		t.Fatalf("notifications = %+v", events)
	}

	second := f.run(accept())
	if second.Outcome != OutcomeNoChanges {
		t.Fatalf("second outcome = %s", second.Outcome)
	}
	if f.tool.invocations() != 2 {
		t.Fatalf("second session invoked the tool")
	}
	if len(f.notifier.list()) != 1 {
		t.Fatal("no-op session must not notify")
	}
	if len(second.Changes) != 1 || second.Changes[0].Changed {
		t.Fatalf("second changes = %+v", second.Changes)
	}
}

func TestApplyTimeoutLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t, append(l1Games(), library.Game{ID: g4, Name: "Delta", PluginID: pluginL2})...)
	if err := f.cache.Put(pluginL2.String(), "stale"); err != nil {
		t.Fatal(err)
	}
	f.tool.add = procrun.TimedOut

	report := f.run(accept())
	if report.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if !errors.Is(report.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", report.Err)
	}
	if len(f.tool.enableIDs) != 1 {
		t.Fatal("configure step should have run")
	}
	if _, ok := f.cached(t, pluginL1); ok {
		t.Fatal("L1 must stay uncached")
	}
	if fp, _ := f.cached(t, pluginL2); fp != "stale" {
		t.Fatalf("L2 cache changed to %q", fp)
	}
	events := f.notifier.list()
	if len(events) != 1 || events[0].event != notifications.EventSyncFailed {
		t.Fatalf("notifications = %+v", events)
	}
	if events[0].payload["outcome"] != "timed_out" {
		t.Fatalf("failure outcome = %v", events[0].payload["outcome"])
	}
}

func TestConfigureFailureStopsBeforeApply(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.tool.enable = procrun.Failure

	report := f.run(accept())
	if report.Outcome != OutcomeFailed || !errors.Is(report.Err, services.ErrExternalTool) {
		t.Fatalf("outcome = %s err = %v", report.Outcome, report.Err)
	}
	if f.tool.adds != 0 {
		t.Fatal("apply must not run after configure failed")
	}
	if _, ok := f.cached(t, pluginL1); ok {
		t.Fatal("cache must stay empty")
	}
}

func TestDeclinedSyncHasNoSideEffects(t *testing.T) {
	f := newFixture(t, l1Games()...)
	confirmer := &countingConfirmer{StaticConfirmer: StaticConfirmer{Sync: false}}

	report := f.run(confirmer)
	if report.Outcome != OutcomeDeclined {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if f.installer.calls != 0 || f.writer.all != nil || f.tool.invocations() != 0 {
		t.Fatal("declined session must stop before any step runs")
	}
	if _, ok := f.cached(t, pluginL1); ok {
		t.Fatal("cache changed")
	}
	if len(f.notifier.list()) != 0 {
		t.Fatal("declined session must not notify")
	}
}

func TestToolUnavailableFails(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.installer.err = services.Wrap(services.ErrExternalTool, "ensure_tool", "download srm", "", errors.New("offline"))

	report := f.run(accept())
	if report.Outcome != OutcomeFailed || f.writer.all != nil {
		t.Fatalf("outcome = %s, writer called = %v", report.Outcome, f.writer.all != nil)
	}
	if len(f.notifier.list()) != 1 {
		t.Fatal("expected one failure notification")
	}
}

func TestSteamDeclinedAborts(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.steam.running = true
	confirmer := &countingConfirmer{StaticConfirmer: StaticConfirmer{Sync: true, StopSteam: false}}

	report := f.run(confirmer)
	if report.Outcome != OutcomeAborted {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if f.steam.stops != 0 || f.tool.invocations() != 0 {
		t.Fatal("aborted session must not stop steam or invoke the tool")
	}
	if _, ok := f.cached(t, pluginL1); ok {
		t.Fatal("cache changed")
	}
	if len(f.notifier.list()) != 0 {
		t.Fatal("aborted session must not notify")
	}
}

func TestSteamStopFailureFails(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.steam.running = true
	f.steam.stopErr = services.Wrap(services.ErrTimeout, "steam", "stop", "still running", nil)

	report := f.run(accept())
	if report.Outcome != OutcomeFailed || f.tool.invocations() != 0 {
		t.Fatalf("outcome = %s invocations = %d", report.Outcome, f.tool.invocations())
	}
}

func TestRestartOfferedOnlyWhenSteamWasStopped(t *testing.T) {
	f := newFixture(t, l1Games()...)
	confirmer := &countingConfirmer{StaticConfirmer: StaticConfirmer{Sync: true, StopSteam: true, RestartSteam: true}}
	report := f.run(confirmer)
	if report.Outcome != OutcomeSucceeded || confirmer.restartAsked != 0 || confirmer.stopAsked != 0 {
		t.Fatalf("outcome=%s stopAsked=%d restartAsked=%d", report.Outcome, confirmer.stopAsked, confirmer.restartAsked)
	}

	g := newFixture(t, l1Games()...)
	g.steam.running = true
	confirmer = &countingConfirmer{StaticConfirmer: StaticConfirmer{Sync: true, StopSteam: true, RestartSteam: true}}
	report = g.run(confirmer)
	if report.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s (%v)", report.Outcome, report.Err)
	}
	if !report.SteamStopped || !report.SteamRestarted || g.steam.starts != 1 || confirmer.restartAsked != 1 {
		t.Fatalf("stopped=%v restarted=%v starts=%d asked=%d", report.SteamStopped, report.SteamRestarted, g.steam.starts, confirmer.restartAsked)
	}
}

func TestUnchangedLibrariesAreConfiguredButNotEnabled(t *testing.T) {
	f := newFixture(t, append(l1Games(), library.Game{ID: g4, Name: "Delta", PluginID: pluginL2})...)
	if err := f.cache.Put(pluginL2.String(), g4.String()); err != nil {
		t.Fatal(err)
	}

	report := f.run(accept())
	if report.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s (%v)", report.Outcome, report.Err)
	}
	if len(f.writer.all) != 2 || len(f.writer.changed) != 1 {
		t.Fatalf("writer got all=%d changed=%d", len(f.writer.all), len(f.writer.changed))
	}
	if got := f.tool.enableIDs[0]; len(got) != 1 || got[0] != srm.ParserID(pluginL1.String()) {
		t.Fatalf("enabled = %v", got)
	}
}

func TestConcurrentSessionIsRejected(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.tool.block = make(chan struct{})
	f.tool.entered = make(chan struct{})

	done := make(chan Report, 1)
	go func() { done <- f.run(accept()) }()
	<-f.tool.entered

	if !f.orch.Busy() {
		t.Fatal("orchestrator should report busy")
	}
	rejected := f.run(accept())
	if rejected.Outcome != OutcomeBusy || !errors.Is(rejected.Err, services.ErrBusy) {
		t.Fatalf("concurrent outcome = %s (%v)", rejected.Outcome, rejected.Err)
	}

	close(f.tool.block)
	first := <-done
	if first.Outcome != OutcomeSucceeded {
		t.Fatalf("first outcome = %s (%v)", first.Outcome, first.Err)
	}
	if len(f.notifier.list()) != 1 {
		t.Fatal("busy rejection must not notify")
	}
}

func TestLockHeldByAnotherProcessIsBusy(t *testing.T) {
	f := newFixture(t, l1Games()...)
	other := flock.New(f.lockPath)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer other.Unlock()

	report := f.run(accept())
	if report.Outcome != OutcomeBusy {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if f.tool.invocations() != 0 {
		t.Fatal("busy session must not run steps")
	}
}

func TestPanickingProgressDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t, l1Games()...)
	var mu sync.Mutex
	var labels []string
	progress := ProgressFunc(func(index, total int, label string) {
		mu.Lock()
		labels = append(labels, label)
		mu.Unlock()
		if index == 1 {
			panic("reporter bug")
		}
	})

	report := f.orch.Run(context.Background(), Request{Trigger: "test", Confirmer: accept(), Progress: progress})
	if report.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s (%v)", report.Outcome, report.Err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(labels)
		mu.Unlock()
		if n >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("progress stopped after the reporter panicked")
}

func TestSessionsAreRecorded(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.tool.add = procrun.Failure
	report := f.run(accept())

	if len(f.history.sessions) != 1 {
		t.Fatalf("recorded %d sessions", len(f.history.sessions))
	}
	s := f.history.sessions[0]
	if s.ID != report.SessionID || s.Outcome != string(OutcomeFailed) || s.Failure != "tool_failed" {
		t.Fatalf("recorded %+v", s)
	}
	if len(s.Libraries) != 1 || !s.Libraries[0].Changed || s.Libraries[0].Games != 3 {
		t.Fatalf("libraries = %+v", s.Libraries)
	}
	last := s.Steps[len(s.Steps)-1]
	if last.Name != string(StepApply) || last.Outcome != "failed" {
		t.Fatalf("last step = %+v", last)
	}
	if got, ok := f.orch.LastReport(); !ok || got.SessionID != report.SessionID {
		t.Fatal("LastReport not updated")
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	f := newFixture(t, l1Games()...)
	f.run(accept())
	f.run(accept())

	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "srmsync_sessions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" {
					counts[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts[string(OutcomeSucceeded)] != 1 || counts[string(OutcomeNoChanges)] != 1 {
		t.Fatalf("session counts = %v", counts)
	}
}

func TestProgressIsDeliveredBeforeRunReturns(t *testing.T) {
	f := newFixture(t, l1Games()...)
	var mu sync.Mutex
	var labels []string
	progress := ProgressFunc(func(index, total int, label string) {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		labels = append(labels, label)
		mu.Unlock()
	})

	report := f.orch.Run(context.Background(), Request{Trigger: "test", Confirmer: accept(), Progress: progress})
	if report.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s (%v)", report.Outcome, report.Err)
	}
	mu.Lock()
	delivered := len(labels)
	mu.Unlock()
	if delivered == 0 {
		t.Fatal("no progress delivered before Run returned")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(labels) != delivered {
		t.Fatalf("progress arrived after Run returned: %d then %d", delivered, len(labels))
	}
	if last := labels[len(labels)-1]; last != StepCommit.Label() {
		t.Fatalf("last delivered step = %q", last)
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"srmsync/internal/api"
	"srmsync/internal/config"
	"srmsync/internal/deps"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/lifecycle"
	"srmsync/internal/logging"
	"srmsync/internal/notifications"
	"srmsync/internal/workflow"
)

// SyncRunner runs sync sessions.
type SyncRunner interface {
	Run(ctx context.Context, req workflow.Request) workflow.Report
	Busy() bool
	LastReport() (workflow.Report, bool)
}

// SessionLog reads recorded sessions.
type SessionLog interface {
	Recent(ctx context.Context, limit int) ([]history.Session, error)
}

// Tracker is the subset of the lifecycle tracker the daemon drives.
type Tracker interface {
	HandleURI(ctx context.Context, raw string)
	HandleLaunchRequest(ctx context.Context, rawID string)
	HandleStop(rawID string)
	HandleInstalled(rawID string)
	States() map[uuid.UUID]lifecycle.State
	Reset() error
	Close()
}

// Deps are the collaborators of a Daemon.
type Deps struct {
	Sync      SyncRunner
	Confirmer workflow.Confirmer
	Tracker   Tracker
	Source    library.Source
	History   SessionLog
	Notifier  notifications.Service
	// Registry backs /metrics. Nil disables the endpoint.
	Registry *prometheus.Registry
}

// Daemon coordinates the watcher, sync loop, lifecycle tracker, and HTTP API
// and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]
	triggers  chan string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	SyncInProgress bool
	SyncQueued     bool
	LastReport     *workflow.Report
	Tracked        map[uuid.UUID]lifecycle.State
	LockFilePath   string
	HistoryPath    string
	LibraryPath    string
	Dependencies   []deps.Status
}

// GameEvent names a host notification about a game.
type GameEvent string

const (
	GameStopped   GameEvent = "stopped"
	GameInstalled GameEvent = "installed"
)

// New constructs a daemon.
func New(cfg *config.Config, d Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Sync == nil || d.Tracker == nil || d.Source == nil {
		return nil, errors.New("daemon requires config, sync runner, tracker, and library source")
	}
	if d.Confirmer == nil {
		d.Confirmer = workflow.StaticConfirmer{}
	}
	if d.Notifier == nil {
		d.Notifier = notifications.NewService(nil)
	}
	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:      cfg,
		deps:     d,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		triggers: make(chan string, 1),
	}, nil
}

// Start acquires the daemon lock, clears state left by a previous run, and
// launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another srmsync daemon instance is already running")
	}

	d.resetState("startup")

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	now := time.Now()
	d.startedAt.Store(&now)
	d.running.Store(true)

	go d.run(runCtx, d.done)

	d.logger.Info("srmsync daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("library", d.cfg.Host.LibraryPath),
	)
	return nil
}

// Stop cancels the background loops, clears launch markers and poll tasks,
// then releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.deps.Tracker.Reset(); err != nil {
		logging.WarnWithContext(d.logger, "clear launch markers failed", "marker_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale markers are removed at next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("srmsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and ends any remaining poll tasks.
func (d *Daemon) Close() error {
	d.Stop()
	d.deps.Tracker.Close()
	return nil
}

// Running reports whether the daemon loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) resetState(phase string) {
	if err := d.deps.Tracker.Reset(); err != nil {
		logging.WarnWithContext(d.logger, "clear launch markers failed", "marker_reset_failed",
			logging.Error(err),
			logging.String("phase", phase),
			logging.String(logging.FieldImpact, "stale launch markers remain"),
		)
	}
}

func (d *Daemon) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.syncLoop(gctx) })
	if path := strings.TrimSpace(d.cfg.Host.LibraryPath); path != "" {
		watcher := library.NewWatcher(path, d.cfg.Debounce(), d.logger)
		g.Go(func() error {
			if err := watcher.Run(gctx, func() { d.RequestSync("watcher") }); err != nil {
				d.reportError(gctx, "library watcher", err)
			}
			return nil
		})
	}
	if httpAPI := newAPIServer(d.cfg, d, d.logger); httpAPI != nil {
		g.Go(func() error {
			if err := httpAPI.serve(gctx); err != nil {
				d.reportError(gctx, "http api", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		d.reportError(context.Background(), "daemon", err)
	}
}

// RequestSync queues a session. While a session runs, further requests
// collapse into a single follow-up. It reports whether the request was
// queued rather than merged into one already pending.
func (d *Daemon) RequestSync(trigger string) bool {
	select {
	case d.triggers <- trigger:
		d.logger.Debug("sync queued", logging.String("trigger", trigger))
		return true
	default:
		d.logger.Debug("sync already queued", logging.String("trigger", trigger))
		return false
	}
}

func (d *Daemon) syncLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case trigger := <-d.triggers:
			d.deps.Sync.Run(ctx, workflow.Request{Trigger: trigger, Confirmer: d.deps.Confirmer})
		}
	}
}

// SyncNow runs a session immediately and waits for its report.
func (d *Daemon) SyncNow(ctx context.Context, trigger string) workflow.Report {
	return d.deps.Sync.Run(ctx, workflow.Request{Trigger: trigger, Confirmer: d.deps.Confirmer})
}

// OpenURI handles a launch URI.
func (d *Daemon) OpenURI(ctx context.Context, uri string) {
	d.deps.Tracker.HandleURI(ctx, uri)
}

// Launch handles a start-or-install request for a game ID.
func (d *Daemon) Launch(ctx context.Context, gameID string) {
	d.deps.Tracker.HandleLaunchRequest(ctx, gameID)
}

// HandleGameEvent routes a host event to the tracker.
func (d *Daemon) HandleGameEvent(event GameEvent, gameID string) error {
	switch event {
	case GameStopped:
		d.deps.Tracker.HandleStop(gameID)
	case GameInstalled:
		d.deps.Tracker.HandleInstalled(gameID)
	default:
		return fmt.Errorf("unknown game event %q", event)
	}
	return nil
}

// Games lists library games with their lifecycle state, optionally filtered
// by a fuzzy title query.
func (d *Daemon) Games(ctx context.Context, query string) ([]api.Game, error) {
	games, err := d.deps.Source.Games(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) != "" {
		games = library.Search(games, query)
	} else {
		sort.SliceStable(games, func(i, j int) bool {
			return strings.ToLower(games[i].Name) < strings.ToLower(games[j].Name)
		})
	}
	return api.FromGames(games, d.deps.Tracker.States()), nil
}

// Sessions returns the most recent recorded sessions.
func (d *Daemon) Sessions(ctx context.Context, limit int) ([]history.Session, error) {
	if d.deps.History == nil {
		return nil, nil
	}
	return d.deps.History.Recent(ctx, limit)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.deps.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		SyncInProgress: d.deps.Sync.Busy(),
		SyncQueued:     len(d.triggers) > 0,
		Tracked:        d.deps.Tracker.States(),
		LockFilePath:   d.lockPath,
		HistoryPath:    d.cfg.HistoryPath(),
		LibraryPath:    d.cfg.Host.LibraryPath,
		Dependencies:   deps.CheckAll(d.cfg),
	}
	if started := d.startedAt.Load(); started != nil && status.Running {
		status.StartedAt = *started
	}
	if report, ok := d.deps.Sync.LastReport(); ok {
		status.LastReport = &report
	}
	return status
}

func (d *Daemon) reportError(ctx context.Context, where string, err error) {
	logging.ErrorWithContext(d.logger, where+" failed", "daemon_component_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the daemon log and restart srmsync daemon"),
		logging.String(logging.FieldImpact, where+" stopped"),
	)
	if pubErr := d.deps.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"context": where,
		"error":   err,
	}); pubErr != nil {
		d.logger.Debug("error notification failed", logging.Error(pubErr))
	}
}

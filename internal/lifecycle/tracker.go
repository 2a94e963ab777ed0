package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/services"
)

// DefaultPollInterval is how often a pending install is checked.
const DefaultPollInterval = 20 * time.Second

// Launcher dispatches start and install requests to the host launcher.
type Launcher interface {
	Start(ctx context.Context, id uuid.UUID) error
	Install(ctx context.Context, id uuid.UUID) error
}

// LivenessChecker reports whether a dispatched install is still plausibly
// in progress.
type LivenessChecker interface {
	InstallInProgress(ctx context.Context, id uuid.UUID) (bool, error)
}

// Hooks are invoked after state transitions. They run on the goroutine that
// caused the transition and must not call back into the Tracker.
type Hooks struct {
	OnStart func(game library.Game)
	OnAbort func(game library.Game)
}

// Options configures a Tracker.
type Options struct {
	PollInterval time.Duration
	URIScheme    string
	Hooks        Hooks
}

type pollTask struct {
	game   library.Game
	cancel context.CancelFunc
}

// Tracker owns per-game lifecycle state.
type Tracker struct {
	source   library.Source
	launcher Launcher
	liveness LivenessChecker
	markers  MarkerStore
	interval time.Duration
	scheme   string
	hooks    Hooks
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	states map[uuid.UUID]State
	polls  map[uuid.UUID]*pollTask
}

// New constructs a Tracker. Poll tasks run until Close.
func New(source library.Source, launcher Launcher, liveness LivenessChecker, markers MarkerStore, opts Options, logger *slog.Logger) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if markers == nil {
		markers = NewMemoryStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		source:   source,
		launcher: launcher,
		liveness: liveness,
		markers:  markers,
		interval: opts.PollInterval,
		scheme:   opts.URIScheme,
		hooks:    opts.Hooks,
		logger:   logging.NewComponentLogger(logger, "lifecycle"),
		ctx:      ctx,
		cancel:   cancel,
		states:   make(map[uuid.UUID]State),
		polls:    make(map[uuid.UUID]*pollTask),
	}
}

// HandleURI parses a launch URI and dispatches it. Foreign schemes and
// paths are logged and ignored.
func (t *Tracker) HandleURI(ctx context.Context, raw string) {
	id, err := ParseLaunchURI(t.scheme, raw)
	if err != nil {
		logging.WarnWithContext(t.logger, "ignoring launch uri", "uri_ignored",
			logging.String("uri", raw),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "expected "+t.scheme+"://"+LaunchPath+"/<game id>"),
			logging.String(logging.FieldImpact, "no game was started"),
		)
		return
	}
	t.HandleLaunchRequest(ctx, id)
}

// HandleLaunchRequest starts an installed game or installs a missing one.
// Malformed or unknown IDs are logged and ignored.
func (t *Tracker) HandleLaunchRequest(ctx context.Context, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		logging.WarnWithContext(t.logger, "launch request has invalid game id", "launch_invalid_id",
			logging.String(logging.FieldGameID, rawID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		return
	}
	ctx = services.WithGameID(ctx, id.String())
	logger := logging.WithContext(ctx, t.logger)

	game, found, err := library.Find(ctx, t.source, id)
	if err != nil {
		logging.ErrorWithContext(logger, "load library for launch request failed", "launch_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check host.library_path"),
		)
		return
	}
	if !found {
		logging.WarnWithContext(logger, "launch request for unknown game", "launch_unknown_game",
			logging.String(logging.FieldImpact, "request ignored"),
			logging.String(logging.FieldErrorHint, "run a sync so Steam shortcuts match the library"),
		)
		return
	}

	if game.Installed {
		t.startGame(ctx, logger, game)
		return
	}
	t.installGame(ctx, logger, game)
}

func (t *Tracker) startGame(ctx context.Context, logger *slog.Logger, game library.Game) {
	if err := t.launcher.Start(ctx, game.ID); err != nil {
		logging.ErrorWithContext(logger, "start game failed", "game_start_failed",
			logging.String("game", game.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check host.executable and host.start_args"),
		)
		return
	}
	t.mu.Lock()
	t.cancelPollLocked(game.ID)
	t.states[game.ID] = StateRunning
	t.putMarker(logger, game.ID, StateRunning)
	t.mu.Unlock()

	logger.Info("game started",
		logging.String(logging.FieldEventType, "game_started"),
		logging.String("game", game.Name),
	)
	if t.hooks.OnStart != nil {
		t.hooks.OnStart(game)
	}
}

func (t *Tracker) installGame(ctx context.Context, logger *slog.Logger, game library.Game) {
	if err := t.launcher.Install(ctx, game.ID); err != nil {
		logging.ErrorWithContext(logger, "install game failed", "game_install_failed",
			logging.String("game", game.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check host.executable and host.install_args"),
		)
		return
	}

	pollCtx, cancel := context.WithCancel(t.ctx)
	task := &pollTask{game: game, cancel: cancel}

	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		cancel()
		return
	}
	t.cancelPollLocked(game.ID)
	t.polls[game.ID] = task
	t.states[game.ID] = StateInstallPending
	t.wg.Add(1)
	t.putMarker(logger, game.ID, StateInstallPending)
	t.mu.Unlock()

	logger.Info("game install dispatched",
		logging.String(logging.FieldEventType, "game_install_pending"),
		logging.String("game", game.Name),
		logging.Duration("poll_interval", t.interval),
	)
	go t.poll(pollCtx, task)
}

func (t *Tracker) poll(ctx context.Context, task *pollTask) {
	defer t.wg.Done()
	id := task.game.ID
	logger := logging.WithContext(services.WithGameID(ctx, id.String()), t.logger)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		inProgress, err := t.liveness.InstallInProgress(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.WarnWithContext(logger, "install liveness check failed", "install_poll_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "will check again on the next poll"),
			)
			continue
		}
		if inProgress {
			continue
		}

		game, found, findErr := library.Find(ctx, t.source, id)
		if findErr == nil && found && game.Installed {
			if t.finish(id, task) {
				logger.Info("install completed",
					logging.String(logging.FieldEventType, "game_install_completed"),
					logging.String("game", task.game.Name),
				)
			}
			return
		}
		if !t.finish(id, task) {
			return
		}
		logging.WarnWithContext(logger, "install abandoned", "install_aborted",
			logging.String("game", task.game.Name),
			logging.String(logging.FieldErrorHint, "the host launcher exited before the install finished"),
			logging.String(logging.FieldImpact, "tracking cleared"),
		)
		if t.hooks.OnAbort != nil {
			t.hooks.OnAbort(task.game)
		}
		return
	}
}

// finish clears state for id if task still owns it. Exactly one caller wins
// for a given task.
func (t *Tracker) finish(id uuid.UUID, task *pollTask) bool {
	t.mu.Lock()
	current, ok := t.polls[id]
	if !ok || current != task {
		t.mu.Unlock()
		return false
	}
	delete(t.polls, id)
	delete(t.states, id)
	task.cancel()
	t.deleteMarker(t.logger, id)
	t.mu.Unlock()
	return true
}

// HandleStop clears a game's state after it exits.
func (t *Tracker) HandleStop(rawID string) {
	t.clear(rawID, "game_stopped")
}

// HandleInstalled clears a pending install once the host reports it done.
func (t *Tracker) HandleInstalled(rawID string) {
	t.clear(rawID, "game_installed")
}

func (t *Tracker) clear(rawID, event string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		t.logger.Debug("ignoring event with invalid game id",
			logging.String(logging.FieldEventType, event),
			logging.String(logging.FieldGameID, rawID),
		)
		return
	}
	t.mu.Lock()
	previous, tracked := t.states[id]
	t.cancelPollLocked(id)
	delete(t.states, id)
	t.deleteMarker(t.logger, id)
	t.mu.Unlock()

	if tracked {
		t.logger.Info("game state cleared",
			logging.String(logging.FieldEventType, event),
			logging.String(logging.FieldGameID, id.String()),
			logging.String("previous_state", string(previous)),
		)
	}
}

func (t *Tracker) cancelPollLocked(id uuid.UUID) {
	if task, ok := t.polls[id]; ok {
		task.cancel()
		delete(t.polls, id)
	}
}

// State returns the state of one game.
func (t *Tracker) State(id uuid.UUID) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.states[id]; ok {
		return state
	}
	return StateIdle
}

// States returns a snapshot of every tracked game.
func (t *Tracker) States() map[uuid.UUID]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uuid.UUID]State, len(t.states))
	for id, state := range t.states {
		out[id] = state
	}
	return out
}

// Pending reports whether a poll task is active for id.
func (t *Tracker) Pending(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.polls[id]
	return ok
}

// Reset cancels all tracking and wipes the marker store. Used for recovery
// at startup and cleanup at shutdown.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.polls {
		t.cancelPollLocked(id)
	}
	t.states = make(map[uuid.UUID]State)
	if err := t.markers.Clear(); err != nil {
		return services.Wrap(services.ErrTransient, "lifecycle", "reset markers", "", err)
	}
	return nil
}

// Close cancels every poll task and waits for them to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.cancel()
	for id := range t.polls {
		t.cancelPollLocked(id)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// putMarker and deleteMarker run under mu so the marker store always follows
// the order of state transitions.
func (t *Tracker) putMarker(logger *slog.Logger, id uuid.UUID, state State) {
	if err := t.markers.Put(id, state); err != nil {
		logging.WarnWithContext(logger, "write game marker failed", "marker_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "other processes will not see this game as active"),
		)
	}
}

func (t *Tracker) deleteMarker(logger *slog.Logger, id uuid.UUID) {
	if err := t.markers.Delete(id); err != nil {
		logging.WarnWithContext(logger, "remove game marker failed", "marker_delete_failed",
			logging.String(logging.FieldGameID, id.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale marker remains until the next reset"),
		)
	}
}

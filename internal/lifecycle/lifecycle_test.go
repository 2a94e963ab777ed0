package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"srmsync/internal/library"
	"srmsync/internal/logging"
)

type fakeLauncher struct {
	mu       sync.Mutex
	started  []uuid.UUID
	installs []uuid.UUID
	err      error
}

func (f *fakeLauncher) Start(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeLauncher) Install(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.installs = append(f.installs, id)
	return nil
}

// fakeLiveness reports every game in progress until told otherwise.
type fakeLiveness struct {
	mu    sync.Mutex
	dead  map[uuid.UUID]bool
	calls map[uuid.UUID]int
}

func newFakeLiveness() *fakeLiveness {
	return &fakeLiveness{dead: map[uuid.UUID]bool{}, calls: map[uuid.UUID]int{}}
}

func (f *fakeLiveness) InstallInProgress(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	return !f.dead[id], nil
}

func (f *fakeLiveness) kill(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[id] = true
}

type aborts struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (a *aborts) record(game library.Game) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, game.ID)
}

func (a *aborts) count(id uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, got := range a.ids {
		if got == id {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	tracker  *Tracker
	launcher *fakeLauncher
	liveness *fakeLiveness
	markers  *MemoryStore
	aborts   *aborts
	started  []uuid.UUID
}

func newHarness(t *testing.T, games []library.Game) *harness {
	t.Helper()
	h := &harness{
		launcher: &fakeLauncher{},
		liveness: newFakeLiveness(),
		markers:  NewMemoryStore(),
		aborts:   &aborts{},
	}
	h.tracker = New(library.StaticSource(games), h.launcher, h.liveness, h.markers, Options{
		PollInterval: 5 * time.Millisecond,
		URIScheme:    "playnite",
		Hooks: Hooks{
			OnStart: func(g library.Game) { h.started = append(h.started, g.ID) },
			OnAbort: h.aborts.record,
		},
	}, logging.NewNop())
	t.Cleanup(h.tracker.Close)
	return h
}

func (h *harness) marker(t *testing.T, id uuid.UUID) (State, bool) {
	t.Helper()
	markers, err := h.markers.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	state, ok := markers[id]
	return state, ok
}

func TestLaunchInstalledGameStarts(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades", Installed: true}
	h := newHarness(t, []library.Game{game})

	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())

	if len(h.launcher.started) != 1 || len(h.launcher.installs) != 0 {
		t.Fatalf("started=%v installs=%v", h.launcher.started, h.launcher.installs)
	}
	if h.tracker.State(game.ID) != StateRunning {
		t.Fatalf("state = %s", h.tracker.State(game.ID))
	}
	if state, ok := h.marker(t, game.ID); !ok || state != StateRunning {
		t.Fatalf("marker = %q, %v", state, ok)
	}
	if len(h.started) != 1 || h.started[0] != game.ID {
		t.Fatalf("on-start hook calls = %v", h.started)
	}

	h.tracker.HandleStop(game.ID.String())
	if h.tracker.State(game.ID) != StateIdle {
		t.Fatalf("state after stop = %s", h.tracker.State(game.ID))
	}
	if _, ok := h.marker(t, game.ID); ok {
		t.Fatal("marker survived stop")
	}
}

func TestLaunchIgnoresInvalidAndUnknownIDs(t *testing.T) {
	h := newHarness(t, nil)
	h.tracker.HandleLaunchRequest(context.Background(), "not-a-guid")
	h.tracker.HandleLaunchRequest(context.Background(), uuid.NewString())
	h.tracker.HandleStop("garbage")
	h.tracker.HandleInstalled(uuid.NewString())

	if len(h.launcher.started)+len(h.launcher.installs) != 0 {
		t.Fatal("launcher should not be invoked")
	}
	if len(h.tracker.States()) != 0 {
		t.Fatalf("unexpected states %v", h.tracker.States())
	}
}

func TestLauncherErrorLeavesGameIdle(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades"}
	h := newHarness(t, []library.Game{game})
	h.launcher.err = errors.New("boom")

	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())
	if h.tracker.State(game.ID) != StateIdle || h.tracker.Pending(game.ID) {
		t.Fatalf("state = %s pending=%v", h.tracker.State(game.ID), h.tracker.Pending(game.ID))
	}
}

func TestInstallTrackingIsPerGame(t *testing.T) {
	a := library.Game{ID: uuid.New(), Name: "A"}
	b := library.Game{ID: uuid.New(), Name: "B"}
	h := newHarness(t, []library.Game{a, b})

	h.tracker.HandleLaunchRequest(context.Background(), a.ID.String())
	h.tracker.HandleLaunchRequest(context.Background(), b.ID.String())
	if !h.tracker.Pending(a.ID) || !h.tracker.Pending(b.ID) {
		t.Fatal("both installs should be tracked")
	}
	if state, _ := h.marker(t, a.ID); state != StateInstallPending {
		t.Fatalf("marker for A = %q", state)
	}

	h.tracker.HandleInstalled(a.ID.String())
	if h.tracker.Pending(a.ID) || h.tracker.State(a.ID) != StateIdle {
		t.Fatal("A should be cleared")
	}
	if !h.tracker.Pending(b.ID) || h.tracker.State(b.ID) != StateInstallPending {
		t.Fatal("B should still be tracked")
	}

	// B keeps polling while A does not.
	waitFor(t, "B to be polled", func() bool {
		h.liveness.mu.Lock()
		defer h.liveness.mu.Unlock()
		return h.liveness.calls[b.ID] >= 3
	})
	if h.aborts.count(a.ID) != 0 || h.aborts.count(b.ID) != 0 {
		t.Fatal("no abort expected while installs are alive")
	}
}

func TestInstallAbortFiresOnce(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades"}
	h := newHarness(t, []library.Game{game})

	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())
	h.liveness.kill(game.ID)

	waitFor(t, "abort", func() bool { return h.aborts.count(game.ID) == 1 })
	if h.tracker.Pending(game.ID) || h.tracker.State(game.ID) != StateIdle {
		t.Fatal("aborted install should be cleared")
	}
	if _, ok := h.marker(t, game.ID); ok {
		t.Fatal("marker survived abort")
	}

	// A late installed event is a no-op and does not fire again.
	h.tracker.HandleInstalled(game.ID.String())
	time.Sleep(20 * time.Millisecond)
	if n := h.aborts.count(game.ID); n != 1 {
		t.Fatalf("abort fired %d times", n)
	}
}

func TestInstallCompletedDuringPollIsNotAnAbort(t *testing.T) {
	id := uuid.New()
	source := &mutableSource{games: []library.Game{{ID: id, Name: "Hades"}}}
	liveness := newFakeLiveness()
	var aborted int
	var mu sync.Mutex
	tracker := New(source, &fakeLauncher{}, liveness, NewMemoryStore(), Options{
		PollInterval: 5 * time.Millisecond,
		Hooks: Hooks{OnAbort: func(library.Game) {
			mu.Lock()
			aborted++
			mu.Unlock()
		}},
	}, logging.NewNop())
	defer tracker.Close()

	tracker.HandleLaunchRequest(context.Background(), id.String())
	source.set([]library.Game{{ID: id, Name: "Hades", Installed: true}})
	liveness.kill(id)

	waitFor(t, "tracking cleared", func() bool { return !tracker.Pending(id) })
	mu.Lock()
	defer mu.Unlock()
	if aborted != 0 {
		t.Fatalf("completed install reported as aborted %d times", aborted)
	}
}

type mutableSource struct {
	mu    sync.Mutex
	games []library.Game
}

func (s *mutableSource) Games(context.Context) ([]library.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]library.Game(nil), s.games...), nil
}

func (s *mutableSource) set(games []library.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = games
}

func TestRerequestReplacesPollTask(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades"}
	h := newHarness(t, []library.Game{game})

	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())
	h.tracker.mu.Lock()
	first := h.tracker.polls[game.ID]
	h.tracker.mu.Unlock()
	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())
	h.tracker.mu.Lock()
	second := h.tracker.polls[game.ID]
	h.tracker.mu.Unlock()
	if first == second {
		t.Fatal("expected a new poll task")
	}

	h.liveness.kill(game.ID)
	waitFor(t, "abort", func() bool { return h.aborts.count(game.ID) >= 1 })
	time.Sleep(20 * time.Millisecond)
	if n := h.aborts.count(game.ID); n != 1 {
		t.Fatalf("abort fired %d times", n)
	}
}

func TestHandleURI(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades", Installed: true}
	h := newHarness(t, []library.Game{game})

	h.tracker.HandleURI(context.Background(), "steam://install-or-start/"+game.ID.String())
	h.tracker.HandleURI(context.Background(), "playnite://showgame/"+game.ID.String())
	if len(h.launcher.started) != 0 {
		t.Fatal("foreign uris must be ignored")
	}
	h.tracker.HandleURI(context.Background(), "playnite://install-or-start/"+game.ID.String())
	if len(h.launcher.started) != 1 {
		t.Fatalf("expected one start, got %d", len(h.launcher.started))
	}
}

func TestParseLaunchURI(t *testing.T) {
	id := uuid.NewString()
	cases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"playnite://install-or-start/" + id, id, true},
		{"Playnite://Install-Or-Start/" + id + "/", id, true},
		{"playnite:install-or-start/" + id, id, true},
		{"playnite://install-or-start/", "", false},
		{"playnite://start/" + id, "", false},
		{"steam://install-or-start/" + id, "", false},
		{"playnite://install-or-start/a/b", "", false},
	}
	for _, tc := range cases {
		got, err := ParseLaunchURI("playnite", tc.raw)
		if (err == nil) != tc.wantOK {
			t.Fatalf("ParseLaunchURI(%q) err=%v, wantOK=%v", tc.raw, err, tc.wantOK)
		}
		if got != tc.want {
			t.Fatalf("ParseLaunchURI(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestResetClearsMarkersAndPolls(t *testing.T) {
	game := library.Game{ID: uuid.New(), Name: "Hades"}
	h := newHarness(t, []library.Game{game})
	h.tracker.HandleLaunchRequest(context.Background(), game.ID.String())

	if err := h.tracker.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if h.tracker.Pending(game.ID) || len(h.tracker.States()) != 0 {
		t.Fatal("reset should drop all tracking")
	}
	if markers, _ := h.markers.List(); len(markers) != 0 {
		t.Fatalf("markers survived reset: %v", markers)
	}
}

func TestDirStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tracking")
	store := NewDirStore(dir)
	a, b := uuid.New(), uuid.New()

	if err := store.Put(a, StateRunning); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(b, StateInstallPending); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	markers, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(markers) != 2 || markers[a] != StateRunning || markers[b] != StateInstallPending {
		t.Fatalf("unexpected markers %v", markers)
	}
	data, err := os.ReadFile(filepath.Join(dir, a.String()))
	if err != nil || string(data) != string(StateRunning) {
		t.Fatalf("marker content %q, %v", data, err)
	}

	if err := store.Delete(a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(a); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	markers, err = store.List()
	if err != nil || len(markers) != 0 {
		t.Fatalf("after Clear: %v, %v", markers, err)
	}
}

// gatedStore blocks the first Put until released.
type gatedStore struct {
	*MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Put(id uuid.UUID, state State) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.MemoryStore.Put(id, state)
}

func TestStopDuringMarkerWriteLeavesNoMarker(t *testing.T) {
	for _, installed := range []bool{true, false} {
		game := library.Game{ID: uuid.New(), Name: "Hades", Installed: installed}
		store := &gatedStore{
			MemoryStore: NewMemoryStore(),
			entered:     make(chan struct{}),
			release:     make(chan struct{}),
		}
		tracker := New(library.StaticSource([]library.Game{game}), &fakeLauncher{}, newFakeLiveness(), store, Options{
			PollInterval: time.Hour,
			URIScheme:    "playnite",
		}, logging.NewNop())

		launched := make(chan struct{})
		go func() {
			defer close(launched)
			tracker.HandleLaunchRequest(context.Background(), game.ID.String())
		}()
		<-store.entered

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			if installed {
				tracker.HandleStop(game.ID.String())
			} else {
				tracker.HandleInstalled(game.ID.String())
			}
		}()
		time.Sleep(20 * time.Millisecond)
		close(store.release)
		<-launched
		<-stopped

		if state := tracker.State(game.ID); state != StateIdle {
			t.Fatalf("installed=%v: state = %s", installed, state)
		}
		markers, err := store.List()
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if state, ok := markers[game.ID]; ok {
			t.Fatalf("installed=%v: stale %s marker left behind", installed, state)
		}
		tracker.Close()
	}
}

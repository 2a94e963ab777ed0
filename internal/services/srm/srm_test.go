package srm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/procrun"
)

var (
	steamPlugin = uuid.MustParse("cb91dfc9-b977-43bf-8e70-55f46e410fab")
	gogPlugin   = uuid.MustParse("aebe8b7c-6dc3-4a66-af31-e7375c6b5e9e")
)

func groupsFor(t *testing.T, games ...library.Game) []library.Group {
	t.Helper()
	return library.GroupGames(games)
}

func newWriter(t *testing.T) (*ManifestWriter, WriterConfig) {
	t.Helper()
	base := t.TempDir()
	cfg := WriterConfig{
		ManifestsDir:   filepath.Join(base, "libraries"),
		UserDataDir:    filepath.Join(base, "bin", "userData"),
		HostExecutable: "/opt/playnite/playnite",
		HostInstallDir: "/opt/playnite",
		SteamDir:       "/home/deck/.local/share/Steam",
		SteamUser:      "deck",
		LaunchURI:      func(id string) string { return "playnite://install-or-start/" + id },
	}
	return NewManifestWriter(cfg, logging.NewNop()), cfg
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func TestWriteEnablesOnlyChangedLibraries(t *testing.T) {
	writer, cfg := newWriter(t)
	g1 := library.Game{ID: uuid.New(), Name: "Hades", PluginID: steamPlugin}
	g2 := library.Game{ID: uuid.New(), Name: "Celeste", PluginID: steamPlugin}
	g3 := library.Game{ID: uuid.New(), Name: "Witcher 3", PluginID: gogPlugin}
	all := groupsFor(t, g1, g2, g3)

	var changed []library.Group
	for _, group := range all {
		if group.Library.ID == gogPlugin {
			changed = append(changed, group)
		}
	}

	artifacts, err := writer.Write(all, changed)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := []string{ParserID(gogPlugin.String())}; !reflect.DeepEqual(artifacts.ParserIDs, want) {
		t.Fatalf("parser ids = %v, want %v", artifacts.ParserIDs, want)
	}
	if len(artifacts.Manifests) != 2 {
		t.Fatalf("expected a manifest for every library, got %v", artifacts.Manifests)
	}
	var steamEntries []ManifestEntry
	readJSON(t, filepath.Join(cfg.ManifestsDir, "Steam", manifestFileName), &steamEntries)
	if len(steamEntries) != 2 {
		t.Fatalf("expected unchanged Steam manifest with 2 entries, got %d", len(steamEntries))
	}

	var entries []ManifestEntry
	readJSON(t, filepath.Join(cfg.ManifestsDir, "GOG", manifestFileName), &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 manifest entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Title != "Witcher 3" || entry.Target != cfg.HostExecutable || entry.StartIn != cfg.HostInstallDir {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.LaunchOptions != "playnite://install-or-start/"+g3.ID.String() {
		t.Fatalf("launch options = %q", entry.LaunchOptions)
	}

	var configs []ParserConfig
	readJSON(t, artifacts.ConfigPath, &configs)
	if len(configs) != 2 || artifacts.ConfiguredLibs != 2 {
		t.Fatalf("expected parser configs for both libraries, got %d", len(configs))
	}
	ids := map[string]string{}
	for _, c := range configs {
		ids[c.ParserID] = c.ParserInputs.ManualManifests
		if c.ParserType != "Manual" || c.Disabled {
			t.Fatalf("unexpected parser %+v", c)
		}
	}
	if ids[ParserID(steamPlugin.String())] != filepath.Join(cfg.ManifestsDir, "Steam") {
		t.Fatalf("steam parser points at %q", ids[ParserID(steamPlugin.String())])
	}

	for _, c := range configs {
		if _, err := os.Stat(filepath.Join(c.ParserInputs.ManualManifests, manifestFileName)); err != nil {
			t.Fatalf("parser %s has no manifest on disk: %v", c.ParserID, err)
		}
	}

	var settings UserSettings
	readJSON(t, artifacts.SettingsPath, &settings)
	if settings.EnvironmentVariables.SteamDirectory != cfg.SteamDir {
		t.Fatalf("steam dir = %q", settings.EnvironmentVariables.SteamDirectory)
	}
	if settings.EnvironmentVariables.UserAccounts != "${deck}" {
		t.Fatalf("user accounts = %q", settings.EnvironmentVariables.UserAccounts)
	}
}

func TestRepeatedWriteKeepsEveryParserBacked(t *testing.T) {
	writer, cfg := newWriter(t)
	all := groupsFor(t,
		library.Game{ID: uuid.New(), Name: "Hades", PluginID: steamPlugin},
		library.Game{ID: uuid.New(), Name: "Witcher 3", PluginID: gogPlugin},
	)
	if _, err := writer.Write(all, all); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	var gogOnly []library.Group
	for _, group := range all {
		if group.Library.ID == gogPlugin {
			gogOnly = append(gogOnly, group)
		}
	}
	artifacts, err := writer.Write(all, gogOnly)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if want := []string{ParserID(gogPlugin.String())}; !reflect.DeepEqual(artifacts.ParserIDs, want) {
		t.Fatalf("parser ids = %v, want %v", artifacts.ParserIDs, want)
	}
	var configs []ParserConfig
	readJSON(t, artifacts.ConfigPath, &configs)
	for _, c := range configs {
		if _, err := os.Stat(filepath.Join(c.ParserInputs.ManualManifests, manifestFileName)); err != nil {
			t.Fatalf("%s manifest missing after second write: %v", c.ConfigTitle, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.ManifestsDir, "Steam", manifestFileName)); err != nil {
		t.Fatalf("Steam manifest missing: %v", err)
	}
}

func TestWriteKeepsOtherUserDataFiles(t *testing.T) {
	writer, cfg := newWriter(t)
	if err := os.MkdirAll(cfg.UserDataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	tracked := filepath.Join(cfg.UserDataDir, "addedItems.json")
	if err := os.WriteFile(tracked, []byte(`{"items":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cfg.UserDataDir, userConfigurationsFile)
	if err := os.WriteFile(stale, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	all := groupsFor(t, library.Game{ID: uuid.New(), Name: "Hades", PluginID: steamPlugin})
	artifacts, err := writer.Write(all, all)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(tracked)
	if err != nil {
		t.Fatalf("unrelated user data removed: %v", err)
	}
	if string(data) != `{"items":[]}` {
		t.Fatalf("unrelated user data rewritten: %q", data)
	}
	var configs []ParserConfig
	readJSON(t, artifacts.ConfigPath, &configs)
	if len(configs) != 1 {
		t.Fatalf("expected parser configuration to be replaced, got %d parsers", len(configs))
	}
}

func TestWriteClearsPreviousArtifacts(t *testing.T) {
	writer, cfg := newWriter(t)
	stale := filepath.Join(cfg.ManifestsDir, "Old", manifestFileName)
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	all := groupsFor(t, library.Game{ID: uuid.New(), Name: "Hades", PluginID: steamPlugin})
	if _, err := writer.Write(all, all); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale manifest survived, stat err=%v", err)
	}
}

func TestManifestDirsResolveNameCollisions(t *testing.T) {
	writer, cfg := newWriter(t)
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("11111111-2222-2222-2222-222222222222")
	all := groupsFor(t,
		library.Game{ID: uuid.New(), Name: "One", PluginID: a},
		library.Game{ID: uuid.New(), Name: "Two", PluginID: b},
	)
	dirs := writer.manifestDirs(all, nil)
	if dirs[a.String()] == dirs[b.String()] {
		t.Fatalf("colliding libraries share %q", dirs[a.String()])
	}
	for _, dir := range dirs {
		if filepath.Dir(dir) != cfg.ManifestsDir {
			t.Fatalf("manifest dir %q outside %q", dir, cfg.ManifestsDir)
		}
	}
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls []procrun.Invocation
	code  int
}

func (r *recordingExecutor) Execute(_ context.Context, inv procrun.Invocation, output io.Writer) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()
	_, _ = io.WriteString(output, "ok\n")
	return r.code, nil
}

func TestClientEnableAndAdd(t *testing.T) {
	exec := &recordingExecutor{}
	runner := procrun.New(logging.NewNop(), procrun.WithExecutor(exec))
	client := NewClient(runner, ClientConfig{
		Binary:        "/data/bin/steam-rom-manager",
		WorkDir:       "/data/bin",
		EnableTimeout: time.Minute,
		AddTimeout:    2 * time.Minute,
	}, logging.NewNop())

	ids := []string{"srmsync-a", "srmsync-b"}
	if res := client.Enable(context.Background(), ids); res.Outcome != procrun.Success {
		t.Fatalf("enable outcome = %s", res.Outcome)
	}
	if res := client.Add(context.Background()); res.Outcome != procrun.Success {
		t.Fatalf("add outcome = %s", res.Outcome)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(exec.calls))
	}
	enable, add := exec.calls[0], exec.calls[1]
	if !reflect.DeepEqual(enable.Args, []string{"enable", "srmsync-a", "srmsync-b"}) {
		t.Fatalf("enable args = %v", enable.Args)
	}
	if enable.Timeout != time.Minute || enable.WorkDir != "/data/bin" || enable.Label != LabelEnable {
		t.Fatalf("unexpected enable invocation %+v", enable)
	}
	if !reflect.DeepEqual(add.Args, []string{"add"}) || add.Timeout != 2*time.Minute {
		t.Fatalf("unexpected add invocation %+v", add)
	}
}

func TestClientReportsFailure(t *testing.T) {
	exec := &recordingExecutor{code: 3}
	runner := procrun.New(logging.NewNop(), procrun.WithExecutor(exec))
	client := NewClient(runner, ClientConfig{Binary: "srm", EnableTimeout: time.Minute}, logging.NewNop())
	res := client.Enable(context.Background(), []string{"srmsync-a"})
	if res.Outcome != procrun.Failure || res.ExitCode != 3 {
		t.Fatalf("expected failure with exit 3, got %s/%d", res.Outcome, res.ExitCode)
	}
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestInstallerDownloadsWithRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "#!/bin/sh\necho srm\n")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bin", "steam-rom-manager")
	inst := NewInstaller(srv.URL, dest, 3, 5*time.Second, logging.NewNop(), WithBackOff(fastBackOff()))
	downloaded, err := inst.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !downloaded || hits.Load() != 2 {
		t.Fatalf("downloaded=%v hits=%d", downloaded, hits.Load())
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat binary: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("binary not executable: %v", info.Mode())
	}

	downloaded, err = inst.Ensure(context.Background())
	if err != nil || downloaded {
		t.Fatalf("second Ensure downloaded=%v err=%v", downloaded, err)
	}
	if hits.Load() != 2 {
		t.Fatalf("present binary triggered another download")
	}
}

func TestInstallerDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "steam-rom-manager")
	inst := NewInstaller(srv.URL, dest, 5, 5*time.Second, logging.NewNop(), WithBackOff(fastBackOff()))
	_, err := inst.Ensure(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error %q does not mention status", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("partial binary left behind, stat err=%v", statErr)
	}
}

func TestInstallerGivesUpAfterAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	inst := NewInstaller(srv.URL, filepath.Join(t.TempDir(), "srm"), 3, 5*time.Second, logging.NewNop(), WithBackOff(fastBackOff()))
	if _, err := inst.Ensure(context.Background()); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

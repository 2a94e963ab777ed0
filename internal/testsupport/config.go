package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"srmsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.TrackingDir = filepath.Join(base, "tracking")
	cfgVal.Paths.ManifestsDir = filepath.Join(base, "libraries")
	cfgVal.Paths.BinDir = filepath.Join(base, "bin")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Host.LibraryPath = filepath.Join(base, "host", "library.json")
	cfgVal.Steam.Username = "tester"
	cfgVal.SRM.DownloadURL = ""
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Daemon.APIBind = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithLibrarySnapshot writes raw JSON as the host library snapshot.
func WithLibrarySnapshot(raw string) ConfigOption {
	return func(b *configBuilder) {
		path := b.cfg.Host.LibraryPath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir host dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			b.t.Fatalf("write library snapshot: %v", err)
		}
	}
}

// WithAPIBind enables the HTTP listener on addr.
func WithAPIBind(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.APIBind = addr
	}
}

// WithStubbedSRM writes an SRM binary that runs script and exits with its
// status. The script receives the SRM arguments.
func WithStubbedSRM(script string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.MkdirAll(b.cfg.Paths.BinDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		body := []byte("#!/bin/sh\n" + script + "\n")
		if err := os.WriteFile(b.cfg.SRMBinaryPath(), body, 0o755); err != nil {
			b.t.Fatalf("write srm stub: %v", err)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default launcher binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Host.Executable, b.cfg.Steam.Executable}
		}
		binDir := filepath.Join(b.baseDir, "path-bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

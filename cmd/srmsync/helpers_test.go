package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"srmsync/internal/config"
	"srmsync/internal/library"
	"srmsync/internal/testsupport"
)

var (
	steamPlugin = uuid.MustParse("cb91dfc9-b977-43bf-8e70-55f46e410fab")
	gogPlugin   = uuid.MustParse("aebe8b7c-6dc3-4a66-af31-e7375c6b5e9e")

	celeste = library.Game{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000c1"), Name: "Celeste", PluginID: steamPlugin, Installed: true}
	hades   = library.Game{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000a2"), Name: "Hades", PluginID: gogPlugin}
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("STEAM_USER", "")
	t.Setenv("SRMSYNC_NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t, opts...)
	// A process name nothing on the test host uses, so Steam always reads as stopped.
	cfg.Steam.ProcessName = "srmsync-test-no-such-steam"
	testsupport.WriteLibrary(t, cfg.Host.LibraryPath, []library.Game{hades, celeste})

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetContext(context.Background())
	flags := []string{"--log-level", "error"}
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}

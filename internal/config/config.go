package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains every directory srmsync reads or writes.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	CacheDir     string `toml:"cache_dir"`
	TrackingDir  string `toml:"tracking_dir"`
	ManifestsDir string `toml:"manifests_dir"`
	BinDir       string `toml:"bin_dir"`
	LogDir       string `toml:"log_dir"`
}

// SRM contains Steam ROM Manager download and invocation settings.
type SRM struct {
	DownloadURL      string `toml:"download_url"`
	BinaryName       string `toml:"binary_name"`
	EnableTimeout    int    `toml:"enable_timeout"`
	AddTimeout       int    `toml:"add_timeout"`
	DownloadTimeout  int    `toml:"download_timeout"`
	DownloadAttempts int    `toml:"download_attempts"`
}

// Steam contains the Steam client location and process identity.
type Steam struct {
	Executable  string `toml:"executable"`
	InstallDir  string `toml:"install_dir"`
	ProcessName string `toml:"process_name"`
	Username    string `toml:"username"`
	StopTimeout int    `toml:"stop_timeout"`
}

// Host describes the launcher that owns the game library.
type Host struct {
	Executable  string   `toml:"executable"`
	InstallDir  string   `toml:"install_dir"`
	ProcessName string   `toml:"process_name"`
	LibraryPath string   `toml:"library_path"`
	URIScheme   string   `toml:"uri_scheme"`
	StartArgs   []string `toml:"start_args"`
	InstallArgs []string `toml:"install_args"`
}

// Lifecycle contains launch/install tracking settings.
type Lifecycle struct {
	PollInterval int `toml:"poll_interval"`
}

// Sync contains the answers used for confirmation gates when no terminal is
// attached (daemon-triggered sessions, or `sync --yes`).
type Sync struct {
	AutoConfirm  bool `toml:"auto_confirm"`
	StopSteam    bool `toml:"stop_steam"`
	RestartSteam bool `toml:"restart_steam"`
	DebounceMS   int  `toml:"debounce_ms"`
}

// Daemon contains daemon-only settings.
type Daemon struct {
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sync           bool   `toml:"sync"`
	Lifecycle      bool   `toml:"lifecycle"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for srmsync.
//
// Configuration sections by subsystem:
//   - Paths: data, cache, marker, manifest, binary, and log directories
//   - SRM: Steam ROM Manager download source and step timeouts
//   - Steam: client executable and process identity
//   - Host: launcher executable, library snapshot, and launch URI scheme
//   - Lifecycle: install polling cadence
//   - Sync: unattended confirmation answers and watcher debounce
//   - Daemon: optional HTTP status listener
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	SRM           SRM           `toml:"srm"`
	Steam         Steam         `toml:"steam"`
	Host          Host          `toml:"host"`
	Lifecycle     Lifecycle     `toml:"lifecycle"`
	Sync          Sync          `toml:"sync"`
	Daemon        Daemon        `toml:"daemon"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "srmsync", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	xdg.Reload()
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("srmsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and CLI write into.
// The SRM user data directory is left to the artifact writer, which recreates
// it on every session.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir, c.Paths.TrackingDir, c.Paths.ManifestsDir, c.Paths.BinDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SRMBinaryPath returns the location of the downloaded Steam ROM Manager binary.
func (c *Config) SRMBinaryPath() string {
	return filepath.Join(c.Paths.BinDir, c.SRM.BinaryName)
}

// SRMUserDataDir returns the directory SRM reads its configuration from.
func (c *Config) SRMUserDataDir() string {
	return filepath.Join(c.Paths.BinDir, "userData")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "srmsync.sock")
}

// DaemonLockPath returns the single-instance lock used by the daemon.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.DataDir, "srmsync.lock")
}

// PIDPath returns the file the daemon writes its process ID to.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "srmsync.pid")
}

// SyncLockPath returns the lock held for the duration of a sync session.
func (c *Config) SyncLockPath() string {
	return filepath.Join(c.Paths.DataDir, "sync.lock")
}

// HistoryPath returns the session history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// EnableTimeout returns the bound for the SRM configure step.
func (c *Config) EnableTimeout() time.Duration {
	return time.Duration(c.SRM.EnableTimeout) * time.Second
}

// AddTimeout returns the bound for the SRM apply step.
func (c *Config) AddTimeout() time.Duration {
	return time.Duration(c.SRM.AddTimeout) * time.Second
}

// DownloadTimeout bounds one SRM download attempt.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.SRM.DownloadTimeout) * time.Second
}

// SteamStopTimeout bounds a graceful Steam shutdown.
func (c *Config) SteamStopTimeout() time.Duration {
	return time.Duration(c.Steam.StopTimeout) * time.Second
}

// Debounce returns the library watcher settle window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// PollInterval returns the install liveness polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Lifecycle.PollInterval) * time.Second
}

// LaunchURI returns the URI embedded in every generated shortcut for gameID.
func (c *Config) LaunchURI(gameID string) string {
	return c.Host.URIScheme + "://" + LaunchURIPath + "/" + gameID
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

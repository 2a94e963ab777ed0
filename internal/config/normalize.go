package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSRM()
	if err := c.normalizeSteam(); err != nil {
		return err
	}
	if err := c.normalizeHost(); err != nil {
		return err
	}
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	c.Daemon.APIToken = strings.TrimSpace(c.Daemon.APIToken)
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	derived := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.cache_dir", &c.Paths.CacheDir, filepath.Join(c.Paths.DataDir, "fingerprints")},
		{"paths.tracking_dir", &c.Paths.TrackingDir, filepath.Join(c.Paths.DataDir, "tracking")},
		{"paths.manifests_dir", &c.Paths.ManifestsDir, filepath.Join(c.Paths.DataDir, "libraries")},
		{"paths.bin_dir", &c.Paths.BinDir, filepath.Join(c.Paths.DataDir, "bin")},
		{"paths.log_dir", &c.Paths.LogDir, filepath.Join(c.Paths.DataDir, "logs")},
	}
	for _, entry := range derived {
		value := strings.TrimSpace(*entry.value)
		if value == "" {
			value = entry.fallback
		}
		if *entry.value, err = expandPath(value); err != nil {
			return fmt.Errorf("%s: %w", entry.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeSRM() {
	c.SRM.DownloadURL = strings.TrimSpace(c.SRM.DownloadURL)
	c.SRM.BinaryName = strings.TrimSpace(c.SRM.BinaryName)
	if c.SRM.BinaryName == "" {
		c.SRM.BinaryName = defaultSRMBinaryName
	}
	if c.SRM.DownloadAttempts <= 0 {
		c.SRM.DownloadAttempts = defaultSRMDownloadAttempts
	}
}

func (c *Config) normalizeSteam() error {
	c.Steam.Executable = strings.TrimSpace(c.Steam.Executable)
	c.Steam.ProcessName = strings.TrimSpace(c.Steam.ProcessName)
	if c.Steam.ProcessName == "" {
		c.Steam.ProcessName = defaultSteamProcessName
	}
	c.Steam.Username = strings.TrimSpace(c.Steam.Username)
	if c.Steam.Username == "" {
		if value, ok := os.LookupEnv("STEAM_USER"); ok {
			c.Steam.Username = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Steam.InstallDir, err = expandPath(strings.TrimSpace(c.Steam.InstallDir)); err != nil {
		return fmt.Errorf("steam.install_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHost() error {
	c.Host.Executable = strings.TrimSpace(c.Host.Executable)
	c.Host.ProcessName = strings.TrimSpace(c.Host.ProcessName)
	if c.Host.ProcessName == "" && c.Host.Executable != "" {
		c.Host.ProcessName = filepath.Base(c.Host.Executable)
	}
	c.Host.URIScheme = strings.ToLower(strings.TrimSpace(c.Host.URIScheme))
	if c.Host.URIScheme == "" {
		c.Host.URIScheme = defaultURIScheme
	}
	var err error
	if c.Host.LibraryPath, err = expandPath(strings.TrimSpace(c.Host.LibraryPath)); err != nil {
		return fmt.Errorf("host.library_path: %w", err)
	}
	installDir := strings.TrimSpace(c.Host.InstallDir)
	if installDir == "" && filepath.IsAbs(c.Host.Executable) {
		installDir = filepath.Dir(c.Host.Executable)
	}
	if c.Host.InstallDir, err = expandPath(installDir); err != nil {
		return fmt.Errorf("host.install_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SRMSYNC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

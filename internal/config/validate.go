package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSRM(); err != nil {
		return err
	}
	if err := c.validateSteam(); err != nil {
		return err
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if err := c.validateLifecycle(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSRM() error {
	if c.SRM.DownloadURL != "" {
		parsed, err := url.Parse(c.SRM.DownloadURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("srm.download_url must be an http(s) URL, got %q", c.SRM.DownloadURL)
		}
	}
	if strings.ContainsAny(c.SRM.BinaryName, `/\`) {
		return errors.New("srm.binary_name must be a file name, not a path")
	}
	if c.SRM.EnableTimeout < 0 {
		return errors.New("srm.enable_timeout must be >= 0")
	}
	if c.SRM.AddTimeout < 0 {
		return errors.New("srm.add_timeout must be >= 0")
	}
	if c.SRM.DownloadTimeout <= 0 {
		return errors.New("srm.download_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSteam() error {
	if c.Steam.Executable == "" {
		return errors.New("steam.executable must be set")
	}
	if c.Steam.StopTimeout <= 0 {
		return errors.New("steam.stop_timeout must be positive")
	}
	return nil
}

func (c *Config) validateHost() error {
	if c.Host.Executable == "" {
		return errors.New("host.executable must be set")
	}
	if c.Host.LibraryPath == "" {
		return errors.New("host.library_path must be set")
	}
	for _, r := range c.Host.URIScheme {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '+' && r != '-' && r != '.' {
			return fmt.Errorf("host.uri_scheme contains invalid character %q", r)
		}
	}
	if !containsPlaceholder(c.Host.StartArgs) {
		return errors.New("host.start_args must reference {id}")
	}
	if !containsPlaceholder(c.Host.InstallArgs) {
		return errors.New("host.install_args must reference {id}")
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	if c.Lifecycle.PollInterval <= 0 {
		return errors.New("lifecycle.poll_interval must be positive")
	}
	if c.Sync.DebounceMS < 0 {
		return errors.New("sync.debounce_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func containsPlaceholder(args []string) bool {
	for _, arg := range args {
		if strings.Contains(arg, "{id}") {
			return true
		}
	}
	return false
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"srmsync/internal/config"
	"srmsync/internal/daemonctl"
	"srmsync/internal/daemonrun"
	"srmsync/internal/ipc"
	"srmsync/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// logger returns a stderr logger for in-process commands.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       c.logLevel(cfg),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// stack builds the in-process collaborators. Callers close it.
func (c *commandContext) stack() (*daemonrun.Stack, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, err
	}
	stack, err := daemonrun.Build(cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return stack, logger, nil
}

// withClient runs fn against the daemon. It returns daemonctl.ErrDaemonNotRunning
// unwrapped so callers can fall back to in-process handling.
func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := daemonctl.Client(c.configValue())
	if err != nil {
		if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
			return err
		}
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer client.Close()
	return fn(client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

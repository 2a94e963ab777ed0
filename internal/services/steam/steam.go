// Package steam controls the Steam client around SRM invocations: SRM
// rewrites shortcuts.vdf, which a running client would overwrite on exit.
package steam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"srmsync/internal/logging"
	"srmsync/internal/procrun"
	"srmsync/internal/procscan"
	"srmsync/internal/services"
)

const defaultPollInterval = 250 * time.Millisecond

// Controller detects, stops and restarts the Steam client.
type Controller struct {
	executable  string
	processName string
	username    string
	stopTimeout time.Duration
	poll        time.Duration

	lister   procscan.Lister
	signaler procscan.Signaler
	start    procrun.Starter
	logger   *slog.Logger
}

// Config holds the client identity.
type Config struct {
	Executable  string
	ProcessName string
	Username    string
	StopTimeout time.Duration
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLister overrides process enumeration.
func WithLister(l procscan.Lister) Option {
	return func(c *Controller) {
		if l != nil {
			c.lister = l
		}
	}
}

// WithSignaler overrides how processes are signalled.
func WithSignaler(s procscan.Signaler) Option {
	return func(c *Controller) {
		if s != nil {
			c.signaler = s
		}
	}
}

// WithStarter overrides how the client is launched.
func WithStarter(s procrun.Starter) Option {
	return func(c *Controller) {
		if s != nil {
			c.start = s
		}
	}
}

// WithPollInterval sets how often Stop re-checks for exited processes.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.poll = d
		}
	}
}

// New constructs a Controller.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Controller {
	name := strings.TrimSpace(cfg.ProcessName)
	if name == "" {
		name = cfg.Executable
	}
	c := &Controller{
		executable:  cfg.Executable,
		processName: name,
		username:    strings.TrimSpace(cfg.Username),
		stopTimeout: cfg.StopTimeout,
		poll:        defaultPollInterval,
		lister:      procscan.NewProcFS(""),
		signaler:    procscan.OSSignaler{},
		start:       procrun.StartDetached,
		logger:      logging.NewComponentLogger(logger, "steam"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveUser returns the configured Steam account name.
func (c *Controller) ActiveUser() string {
	return c.username
}

// IsRunning reports whether any client process is alive.
func (c *Controller) IsRunning(context.Context) (bool, error) {
	running, err := procscan.Running(c.lister, c.processName)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "steam", "check running", c.processName, err)
	}
	return running, nil
}

// Stop terminates every client process, escalating to a kill once the stop
// timeout passes. It returns when no process remains.
func (c *Controller) Stop(ctx context.Context) error {
	procs, err := procscan.Find(c.lister, c.processName)
	if err != nil {
		return services.Wrap(services.ErrTransient, "steam", "stop", "list processes", err)
	}
	if len(procs) == 0 {
		return nil
	}
	c.logger.Info("stopping steam",
		logging.String(logging.FieldEventType, "steam_stop"),
		logging.Int("processes", len(procs)),
	)
	for _, proc := range procs {
		if err := c.signaler.Terminate(proc.PID); err != nil {
			return services.Wrap(services.ErrExternalTool, "steam", "stop", fmt.Sprintf("terminate pid %d", proc.PID), err)
		}
	}
	if c.waitGone(ctx, c.stopTimeout) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	procs, err = procscan.Find(c.lister, c.processName)
	if err != nil {
		return services.Wrap(services.ErrTransient, "steam", "stop", "list processes", err)
	}
	logging.WarnWithContext(c.logger, "steam did not exit; killing", "steam_kill",
		logging.Int("processes", len(procs)),
		logging.Duration("waited", c.stopTimeout),
		logging.String(logging.FieldImpact, "steam may not have saved its state"),
	)
	for _, proc := range procs {
		if err := c.signaler.Kill(proc.PID); err != nil {
			return services.Wrap(services.ErrExternalTool, "steam", "stop", fmt.Sprintf("kill pid %d", proc.PID), err)
		}
	}
	if c.waitGone(ctx, c.stopTimeout) {
		return nil
	}
	return services.Wrap(services.ErrTimeout, "steam", "stop", "steam still running after kill", nil)
}

func (c *Controller) waitGone(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		running, err := procscan.Running(c.lister, c.processName)
		if err == nil && !running {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.poll):
		}
	}
}

// Start launches the client detached from this process.
func (c *Controller) Start(context.Context) error {
	if err := c.start(c.executable); err != nil {
		return services.Wrap(services.ErrExternalTool, "steam", "start", c.executable, err)
	}
	c.logger.Info("steam started", logging.String(logging.FieldEventType, "steam_start"))
	return nil
}

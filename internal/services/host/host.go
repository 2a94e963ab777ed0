// Package host starts and installs games through the launcher that owns the
// library, and answers whether an install it started is still going.
package host

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/procrun"
	"srmsync/internal/procscan"
	"srmsync/internal/services"
)

const idPlaceholder = "{id}"

// Config describes the launcher command line.
type Config struct {
	Executable  string
	ProcessName string
	StartArgs   []string
	InstallArgs []string
}

// Launcher drives the host launcher.
type Launcher struct {
	cfg    Config
	source library.Source
	lister procscan.Lister
	start  procrun.Starter
	logger *slog.Logger
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithLister overrides process enumeration.
func WithLister(l procscan.Lister) Option {
	return func(h *Launcher) {
		if l != nil {
			h.lister = l
		}
	}
}

// WithStarter overrides how launcher commands are spawned.
func WithStarter(s procrun.Starter) Option {
	return func(h *Launcher) {
		if s != nil {
			h.start = s
		}
	}
}

// New constructs a Launcher reading game state from source.
func New(cfg Config, source library.Source, logger *slog.Logger, opts ...Option) *Launcher {
	if strings.TrimSpace(cfg.ProcessName) == "" {
		cfg.ProcessName = cfg.Executable
	}
	h := &Launcher{
		cfg:    cfg,
		source: source,
		lister: procscan.NewProcFS(""),
		start:  procrun.StartDetached,
		logger: logging.NewComponentLogger(logger, "host"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start asks the launcher to run an installed game.
func (h *Launcher) Start(ctx context.Context, id uuid.UUID) error {
	return h.invoke(ctx, "start", h.cfg.StartArgs, id)
}

// Install asks the launcher to install a game.
func (h *Launcher) Install(ctx context.Context, id uuid.UUID) error {
	return h.invoke(ctx, "install", h.cfg.InstallArgs, id)
}

func (h *Launcher) invoke(ctx context.Context, action string, template []string, id uuid.UUID) error {
	args := ExpandArgs(template, id.String())
	if err := h.start(h.cfg.Executable, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "host", action, id.String(), err)
	}
	h.logger.InfoContext(ctx, "host launcher invoked",
		logging.String(logging.FieldEventType, "host_"+action),
		logging.String(logging.FieldGameID, id.String()),
		logging.Strings("args", args),
	)
	return nil
}

// InstallInProgress reports whether an install of id is plausibly still
// running: the launcher process is alive and the game is still not
// installed in a freshly read snapshot.
func (h *Launcher) InstallInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	running, err := procscan.Running(h.lister, h.cfg.ProcessName)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "host", "liveness", "list processes", err)
	}
	if !running {
		return false, nil
	}
	game, found, err := library.Find(ctx, h.source, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return !game.Installed, nil
}

// ExpandArgs substitutes the game ID into an argument template.
func ExpandArgs(template []string, id string) []string {
	out := make([]string, 0, len(template))
	for _, arg := range template {
		out = append(out, strings.ReplaceAll(arg, idPlaceholder, id))
	}
	return out
}

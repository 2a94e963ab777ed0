package srm

import (
	"context"
	"log/slog"
	"time"

	"srmsync/internal/logging"
	"srmsync/internal/procrun"
)

const (
	LabelEnable = "srm-enable"
	LabelAdd    = "srm-add"
)

// Client drives the SRM command line through a procrun.Runner.
type Client struct {
	runner        *procrun.Runner
	binary        string
	workDir       string
	enableTimeout time.Duration
	addTimeout    time.Duration
	logger        *slog.Logger
}

// ClientConfig holds the invocation parameters.
type ClientConfig struct {
	Binary        string
	WorkDir       string
	EnableTimeout time.Duration
	AddTimeout    time.Duration
}

// NewClient constructs an SRM client.
func NewClient(runner *procrun.Runner, cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		runner:        runner,
		binary:        cfg.Binary,
		workDir:       cfg.WorkDir,
		enableTimeout: cfg.EnableTimeout,
		addTimeout:    cfg.AddTimeout,
		logger:        logging.NewComponentLogger(logger, "srm"),
	}
}

// Enable turns on exactly the given parsers.
func (c *Client) Enable(ctx context.Context, parserIDs []string) procrun.Result {
	args := append([]string{"enable"}, parserIDs...)
	c.logger.Info("enabling srm parsers",
		logging.String(logging.FieldEventType, "srm_enable"),
		logging.Strings("parser_ids", parserIDs),
	)
	return c.runner.Run(ctx, procrun.Invocation{
		Executable: c.binary,
		Args:       args,
		WorkDir:    c.workDir,
		Timeout:    c.enableTimeout,
		Label:      LabelEnable,
	})
}

// Add applies the enabled parsers to the Steam library.
func (c *Client) Add(ctx context.Context) procrun.Result {
	c.logger.Info("applying srm shortcuts", logging.String(logging.FieldEventType, "srm_add"))
	return c.runner.Run(ctx, procrun.Invocation{
		Executable: c.binary,
		Args:       []string{"add"},
		WorkDir:    c.workDir,
		Timeout:    c.addTimeout,
		Label:      LabelAdd,
	})
}

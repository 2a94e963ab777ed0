package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"srmsync/internal/config"
	"srmsync/internal/daemon"
	"srmsync/internal/deps"
	"srmsync/internal/ipc"
	"srmsync/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the srmsync daemon and blocks until a signal or an IPC
// shutdown request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("srmsync-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		SessionID:   runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update srmsync.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "srmsync-*.log", cfg.Logging.RetentionDays, logPath)
	logging.CleanupOldLogs(logger, filepath.Join(cfg.Paths.LogDir, "tool"), "*.log", cfg.Logging.RetentionDays)
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stack, err := Build(cfg, logger, registry)
	if err != nil {
		return err
	}
	defer stack.Close()

	d, err := daemon.New(cfg, daemon.Deps{
		Sync:      stack.Orchestrator,
		Confirmer: stack.UnattendedConfirmer(),
		Tracker:   stack.NewTracker(logger),
		Source:    stack.Source,
		History:   stack.History,
		Notifier:  stack.Notifier,
		Registry:  registry,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, cancel, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("srmsync daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("log_path", logPath),
		logging.Int("pid", os.Getpid()),
	)

	<-signalCtx.Done()
	logger.Info("srmsync daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "srmsync.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range deps.CheckAll(cfg) {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("path", status.Path),
			logging.Bool("available", status.Available),
			logging.Bool("optional", status.Optional),
		}
		if !status.Missing() {
			logger.Info("dependency snapshot", logging.Args(attrs...)...)
			continue
		}
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing", append(attrs,
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, "sync or launch steps that need it will fail"),
			logging.String(logging.FieldErrorHint, "install it or fix the path in config"),
		)...)
	}
}

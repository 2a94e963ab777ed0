package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"srmsync/internal/changes"
	"srmsync/internal/config"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/lifecycle"
	"srmsync/internal/logging"
	"srmsync/internal/notifications"
	"srmsync/internal/procrun"
	"srmsync/internal/services/host"
	"srmsync/internal/services/srm"
	"srmsync/internal/services/steam"
	"srmsync/internal/synccache"
	"srmsync/internal/workflow"
)

// Stack holds the collaborators shared by the daemon and one-shot CLI
// commands. Build wires them from configuration; Close releases the history
// database.
type Stack struct {
	Config       *config.Config
	Source       *library.FileSource
	Cache        *synccache.Store
	Markers      *lifecycle.DirStore
	Steam        *steam.Controller
	Host         *host.Launcher
	History      *history.Store
	Notifier     notifications.Service
	Orchestrator *workflow.Orchestrator
}

// Build wires a Stack. reg may be nil when metrics are not exported.
func Build(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	source := library.NewFileSource(cfg.Host.LibraryPath)
	cache := synccache.NewStore(cfg.Paths.CacheDir, logger)
	notifier := notifications.NewService(cfg)
	runner := procrun.New(logger, procrun.WithLogDir(filepath.Join(cfg.Paths.LogDir, "tool")))

	steamCtl := steam.New(steam.Config{
		Executable:  cfg.Steam.Executable,
		ProcessName: cfg.Steam.ProcessName,
		Username:    cfg.Steam.Username,
		StopTimeout: cfg.SteamStopTimeout(),
	}, logger)

	launcher := host.New(host.Config{
		Executable:  cfg.Host.Executable,
		ProcessName: cfg.Host.ProcessName,
		StartArgs:   cfg.Host.StartArgs,
		InstallArgs: cfg.Host.InstallArgs,
	}, source, logger)

	orchestrator := workflow.NewOrchestrator(workflow.Deps{
		Source:   source,
		Detector: changes.NewDetector(cache, logger),
		Installer: srm.NewInstaller(cfg.SRM.DownloadURL, cfg.SRMBinaryPath(),
			cfg.SRM.DownloadAttempts, cfg.DownloadTimeout(), logger),
		Writer: srm.NewManifestWriter(srm.WriterConfig{
			ManifestsDir:   cfg.Paths.ManifestsDir,
			UserDataDir:    cfg.SRMUserDataDir(),
			HostExecutable: cfg.Host.Executable,
			HostInstallDir: cfg.Host.InstallDir,
			SteamDir:       cfg.Steam.InstallDir,
			SteamUser:      steamCtl.ActiveUser(),
			LaunchURI:      cfg.LaunchURI,
		}, logger),
		Tool: srm.NewClient(runner, srm.ClientConfig{
			Binary:        cfg.SRMBinaryPath(),
			WorkDir:       cfg.Paths.BinDir,
			EnableTimeout: cfg.EnableTimeout(),
			AddTimeout:    cfg.AddTimeout(),
		}, logger),
		Steam:    steamCtl,
		Notifier: notifier,
		History:  store,
		Metrics:  workflow.NewMetrics(reg),
		LockPath: cfg.SyncLockPath(),
	}, logger)

	return &Stack{
		Config:       cfg,
		Source:       source,
		Cache:        cache,
		Markers:      lifecycle.NewDirStore(cfg.Paths.TrackingDir),
		Steam:        steamCtl,
		Host:         launcher,
		History:      store,
		Notifier:     notifier,
		Orchestrator: orchestrator,
	}, nil
}

// NewTracker builds the lifecycle tracker. Abandoned installs are
// published as notifications.
func (s *Stack) NewTracker(logger *slog.Logger) *lifecycle.Tracker {
	notifier := s.Notifier
	return lifecycle.New(s.Source, s.Host, s.Host, s.Markers, lifecycle.Options{
		PollInterval: s.Config.PollInterval(),
		URIScheme:    s.Config.Host.URIScheme,
		Hooks: lifecycle.Hooks{
			OnAbort: func(game library.Game) {
				if err := notifier.Publish(context.Background(), notifications.EventInstallAborted, notifications.Payload{
					"game": game.Name,
				}); err != nil {
					logging.WarnWithContext(logger, "install abort notification failed", "notification_failed",
						logging.Error(err),
						logging.String(logging.FieldGameID, game.ID.String()),
						logging.String(logging.FieldImpact, "abandoned install was not pushed"),
					)
				}
			},
		},
	}, logger)
}

// UnattendedConfirmer answers session gates from the [sync] section.
func (s *Stack) UnattendedConfirmer() workflow.Confirmer {
	return workflow.StaticConfirmer{
		Sync:         s.Config.Sync.AutoConfirm,
		StopSteam:    s.Config.Sync.StopSteam,
		RestartSteam: s.Config.Sync.RestartSteam,
	}
}

// Close releases the history database.
func (s *Stack) Close() error {
	if s == nil || s.History == nil {
		return nil
	}
	return s.History.Close()
}

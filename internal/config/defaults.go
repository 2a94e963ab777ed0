package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// LaunchURIPath is the URI path the host launcher routes to srmsync.
const LaunchURIPath = "install-or-start"

const (
	defaultSRMDownloadURL      = "https://github.com/SteamGridDB/steam-rom-manager/releases/download/v2.5.29/Steam-ROM-Manager-2.5.29.AppImage"
	defaultSRMBinaryName       = "steam-rom-manager"
	defaultSRMEnableTimeout    = 120
	defaultSRMAddTimeout       = 900
	defaultSRMDownloadTimeout  = 300
	defaultSRMDownloadAttempts = 3
	defaultSteamExecutable     = "steam"
	defaultSteamInstallDir     = "~/.local/share/Steam"
	defaultSteamProcessName    = "steam"
	defaultSteamStopTimeout    = 30
	defaultHostExecutable      = "playnite"
	defaultHostProcessName     = "playnite"
	defaultURIScheme           = "playnite"
	defaultPollInterval        = 20
	defaultDebounceMS          = 2000
	defaultRequestTimeout      = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults. Directory
// defaults follow the XDG base directory layout.
func Default() Config {
	dataDir := filepath.Join(xdg.DataHome, "srmsync")
	return Config{
		Paths: Paths{
			DataDir:      dataDir,
			CacheDir:     filepath.Join(xdg.CacheHome, "srmsync", "fingerprints"),
			TrackingDir:  filepath.Join(dataDir, "tracking"),
			ManifestsDir: filepath.Join(dataDir, "libraries"),
			BinDir:       filepath.Join(dataDir, "bin"),
			LogDir:       filepath.Join(xdg.StateHome, "srmsync", "logs"),
		},
		SRM: SRM{
			DownloadURL:      defaultSRMDownloadURL,
			BinaryName:       defaultSRMBinaryName,
			EnableTimeout:    defaultSRMEnableTimeout,
			AddTimeout:       defaultSRMAddTimeout,
			DownloadTimeout:  defaultSRMDownloadTimeout,
			DownloadAttempts: defaultSRMDownloadAttempts,
		},
		Steam: Steam{
			Executable:  defaultSteamExecutable,
			InstallDir:  defaultSteamInstallDir,
			ProcessName: defaultSteamProcessName,
			StopTimeout: defaultSteamStopTimeout,
		},
		Host: Host{
			Executable:  defaultHostExecutable,
			ProcessName: defaultHostProcessName,
			LibraryPath: filepath.Join(dataDir, "library.json"),
			URIScheme:   defaultURIScheme,
			StartArgs:   []string{"--start", "{id}"},
			InstallArgs: []string{"--install", "{id}"},
		},
		Lifecycle: Lifecycle{
			PollInterval: defaultPollInterval,
		},
		Sync: Sync{
			StopSteam:    true,
			RestartSteam: true,
			DebounceMS:   defaultDebounceMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			Sync:           true,
			Lifecycle:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

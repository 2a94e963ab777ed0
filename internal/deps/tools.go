package deps

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"srmsync/internal/config"
)

// Requirements lists the launchers srmsync drives. Steam control is
// optional because sessions still run when Steam is already closed.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "Playnite",
			Command:     cfg.Host.Executable,
			Description: "Starts and installs games from Steam shortcuts",
		},
		{
			Name:        "Steam",
			Command:     cfg.Steam.Executable,
			Description: "Restarted after shortcuts are added",
			Optional:    true,
		},
	}
}

// CheckAll reports the launchers plus the SRM binary.
func CheckAll(cfg *config.Config) []Status {
	if cfg == nil {
		return nil
	}
	results := CheckBinaries(Requirements(cfg))
	return append(results, CheckSRM(cfg.SRMBinaryPath(), cfg.SRM.DownloadURL))
}

// CheckSRM reports whether the Steam ROM Manager binary is present. A
// missing binary with a download source is not a failure: the next sync
// fetches it.
func CheckSRM(path, downloadURL string) Status {
	status := Status{
		Name:        "Steam ROM Manager",
		Command:     path,
		Description: "Writes Steam shortcuts from generated manifests",
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && isExecutable(info):
		status.Available = true
		status.Path = path
	case err == nil:
		status.Detail = fmt.Sprintf("%s is not executable", path)
	case strings.TrimSpace(downloadURL) != "":
		status.Optional = true
		status.Detail = "not downloaded yet; fetched on first sync"
	default:
		status.Detail = "binary missing and srm.download_url is empty"
	}
	return status
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

package srm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"srmsync/internal/fileutil"
	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/services"
	"srmsync/internal/textutil"
)

const (
	manifestFileName       = "manifest.json"
	userConfigurationsFile = "userConfigurations.json"
	userSettingsFile       = "userSettings.json"
)

// WriterConfig describes where artifacts go and what each shortcut launches.
type WriterConfig struct {
	ManifestsDir   string
	UserDataDir    string
	HostExecutable string
	HostInstallDir string
	SteamDir       string
	SteamUser      string
	// LaunchURI returns the launch options for a game ID.
	LaunchURI func(gameID string) string
}

// Artifacts reports what a Write produced.
type Artifacts struct {
	// ParserIDs lists the parsers of the changed libraries, in write order.
	ParserIDs []string
	// Manifests maps every library key to its manifest.
	Manifests      map[string]string
	ConfigPath     string
	SettingsPath   string
	ConfiguredLibs int
}

// ManifestWriter produces the manifest and configuration files SRM reads.
type ManifestWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
}

// NewManifestWriter constructs a writer.
func NewManifestWriter(cfg WriterConfig, logger *slog.Logger) *ManifestWriter {
	return &ManifestWriter{cfg: cfg, logger: logging.NewComponentLogger(logger, "srm-writer")}
}

// Write regenerates the manifests directory with one manifest per library,
// so every parser in the combined configuration has input on disk. Only the
// changed libraries are reported in ParserIDs for enabling. The parser
// configuration and user settings files are replaced in place; anything else
// SRM keeps in its user data directory is left alone.
func (w *ManifestWriter) Write(all []library.Group, changed []library.Group) (Artifacts, error) {
	if err := fileutil.ResetDir(w.cfg.ManifestsDir); err != nil {
		return Artifacts{}, services.Wrap(services.ErrTransient, "write_artifacts", "reset manifests", "", err)
	}
	if err := os.MkdirAll(w.cfg.UserDataDir, 0o755); err != nil {
		return Artifacts{}, services.Wrap(services.ErrTransient, "write_artifacts", "create user data", w.cfg.UserDataDir, err)
	}

	dirs := w.manifestDirs(all, changed)
	isChanged := make(map[string]struct{}, len(changed))
	for _, group := range changed {
		isChanged[group.Library.Key()] = struct{}{}
	}
	artifacts := Artifacts{Manifests: make(map[string]string, len(dirs))}

	configs := make([]ParserConfig, 0, len(dirs))
	for _, group := range append(append([]library.Group(nil), all...), changed...) {
		key := group.Library.Key()
		if _, done := artifacts.Manifests[key]; done {
			continue
		}
		dir := dirs[key]
		path := filepath.Join(dir, manifestFileName)
		if err := fileutil.WriteJSONAtomic(path, w.manifestEntries(group)); err != nil {
			return Artifacts{}, services.Wrap(services.ErrTransient, "write_artifacts", "write manifest", group.Library.Name, err)
		}
		artifacts.Manifests[key] = path
		configs = append(configs, NewParserConfig(key, group.Library.Name, dir))
		_, enable := isChanged[key]
		if enable {
			artifacts.ParserIDs = append(artifacts.ParserIDs, ParserID(key))
		}
		w.logger.Debug("manifest written",
			logging.String(logging.FieldLibrary, group.Library.Name),
			logging.Int("games", len(group.Games)),
			logging.Bool("changed", enable),
			logging.String("path", path),
		)
	}

	artifacts.ConfigPath = filepath.Join(w.cfg.UserDataDir, userConfigurationsFile)
	if err := fileutil.WriteJSONAtomic(artifacts.ConfigPath, configs); err != nil {
		return Artifacts{}, services.Wrap(services.ErrTransient, "write_artifacts", "write parser configuration", "", err)
	}
	artifacts.ConfiguredLibs = len(configs)

	artifacts.SettingsPath = filepath.Join(w.cfg.UserDataDir, userSettingsFile)
	if err := fileutil.WriteJSONAtomic(artifacts.SettingsPath, NewUserSettings(w.cfg.SteamDir, w.cfg.SteamUser)); err != nil {
		return Artifacts{}, services.Wrap(services.ErrTransient, "write_artifacts", "write user settings", "", err)
	}

	w.logger.Info("srm configuration written",
		logging.String(logging.FieldEventType, "artifacts_written"),
		logging.Int("parsers", len(configs)),
		logging.Int("manifests", len(artifacts.Manifests)),
		logging.Strings("enabled", artifacts.ParserIDs),
	)
	return artifacts, nil
}

func (w *ManifestWriter) manifestEntries(group library.Group) []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(group.Games))
	for _, game := range group.Games {
		launch := ""
		if w.cfg.LaunchURI != nil {
			launch = w.cfg.LaunchURI(game.ID.String())
		}
		entries = append(entries, ManifestEntry{
			Title:         game.Name,
			Target:        w.cfg.HostExecutable,
			StartIn:       w.cfg.HostInstallDir,
			LaunchOptions: launch,
		})
	}
	return entries
}

// manifestDirs assigns every library a directory named after it. Names that
// collide after sanitizing get the library key appended.
func (w *ManifestWriter) manifestDirs(all []library.Group, changed []library.Group) map[string]string {
	dirs := make(map[string]string, len(all))
	used := make(map[string]string, len(all))
	for _, group := range append(append([]library.Group(nil), all...), changed...) {
		key := group.Library.Key()
		if _, ok := dirs[key]; ok {
			continue
		}
		name := textutil.SanitizeDirName(group.Library.Name, key)
		if owner, taken := used[name]; taken && owner != key {
			name = fmt.Sprintf("%s (%s)", name, key)
		}
		used[name] = key
		dirs[key] = filepath.Join(w.cfg.ManifestsDir, name)
	}
	return dirs
}

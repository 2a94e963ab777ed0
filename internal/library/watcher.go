package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"srmsync/internal/logging"
)

// Watcher reports changes to the library snapshot file. Bursts of events
// (hosts often write, truncate, and rename in quick succession) collapse into
// one notification after the debounce window.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher constructs a watcher for the snapshot at path.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "library-watcher"),
	}
}

// Run watches until ctx is cancelled, calling onChange after each settled
// burst of writes. The parent directory is watched so replacements by rename
// are observed.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)
	w.logger.Info("watching library snapshot",
		logging.String("path", w.path),
		logging.Duration("debounce", w.debounce),
	)

	timer := time.NewTimer(0)
	<-timer.C
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			timer.Reset(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "library watcher error", "library_watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run srmsync sync manually if changes are missed"),
				logging.String(logging.FieldImpact, "a library change may go unnoticed"),
			)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.logger.Debug("library snapshot changed", logging.String(logging.FieldEventType, "library_changed"))
			onChange()
		}
	}
}

// Package changes decides which libraries need re-importing by comparing each
// library's current fingerprint with the one recorded after its last
// successful sync.
package changes

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"srmsync/internal/library"
	"srmsync/internal/logging"
)

// Fingerprint canonicalizes a set of game IDs: ascending order, comma joined.
// Equal sets give equal fingerprints regardless of input order.
func Fingerprint(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Cache is the fingerprint persistence the detector reads and commits to.
type Cache interface {
	Get(key string) (string, bool, error)
	Put(key, fingerprint string) error
	Delete(key string) error
}

// Change is the comparison result for one library group.
type Change struct {
	Group       library.Group
	Fingerprint string
	Previous    string
	HadPrevious bool
	Changed     bool
}

// Detector compares library groups with the cache.
type Detector struct {
	cache  Cache
	logger *slog.Logger
}

// NewDetector constructs a Detector.
func NewDetector(cache Cache, logger *slog.Logger) *Detector {
	return &Detector{cache: cache, logger: logging.NewComponentLogger(logger, "changes")}
}

// ComputeChanges reports, for every group, whether its fingerprint differs
// from the cached one. A library with no cache entry is changed. The cache is
// only read.
func (d *Detector) ComputeChanges(groups []library.Group) ([]Change, error) {
	out := make([]Change, 0, len(groups))
	for _, group := range groups {
		fp := Fingerprint(group.GameIDs())
		prev, ok, err := d.cache.Get(group.Library.Key())
		if err != nil {
			return nil, fmt.Errorf("read cache for %s: %w", group.Library.Name, err)
		}
		change := Change{
			Group:       group,
			Fingerprint: fp,
			Previous:    prev,
			HadPrevious: ok,
			Changed:     !ok || prev != fp,
		}
		d.logger.Debug("library compared",
			logging.String(logging.FieldLibrary, group.Library.Name),
			logging.Int("games", len(group.Games)),
			logging.Bool("changed", change.Changed),
			logging.Bool("first_sync", !ok),
		)
		out = append(out, change)
	}
	return out, nil
}

// Changed filters changes down to the libraries that need syncing.
func Changed(all []Change) []Change {
	out := make([]Change, 0, len(all))
	for _, change := range all {
		if change.Changed {
			out = append(out, change)
		}
	}
	return out
}

// CommitFingerprint records fingerprint as the last synced state of library.
func (d *Detector) CommitFingerprint(libraryKey, fingerprint string) error {
	return d.cache.Put(libraryKey, fingerprint)
}

// Commit records every changed fingerprint. If any write fails, entries
// already written in this call are restored to their previous state so the
// cache never reflects a partial commit.
func (d *Detector) Commit(changed []Change) error {
	written := make([]Change, 0, len(changed))
	for _, change := range changed {
		if !change.Changed {
			continue
		}
		if err := d.CommitFingerprint(change.Group.Library.Key(), change.Fingerprint); err != nil {
			if rbErr := d.rollback(written); rbErr != nil {
				return errors.Join(fmt.Errorf("commit %s: %w", change.Group.Library.Name, err), rbErr)
			}
			return fmt.Errorf("commit %s: %w", change.Group.Library.Name, err)
		}
		written = append(written, change)
	}
	return nil
}

func (d *Detector) rollback(written []Change) error {
	var errs []error
	for i := len(written) - 1; i >= 0; i-- {
		change := written[i]
		key := change.Group.Library.Key()
		var err error
		if change.HadPrevious {
			err = d.cache.Put(key, change.Previous)
		} else {
			err = d.cache.Delete(key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", change.Group.Library.Name, err))
		}
	}
	if len(errs) > 0 {
		logging.ErrorWithContext(d.logger, "cache rollback incomplete", "cache_rollback_failed",
			logging.Error(errors.Join(errs...)),
			logging.String(logging.FieldErrorHint, "run srmsync cache clear to force a full resync"),
		)
	}
	return errors.Join(errs...)
}

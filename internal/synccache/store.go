package synccache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"srmsync/internal/fileutil"
	"srmsync/internal/logging"
)

// Entry describes one cached fingerprint.
type Entry struct {
	Key         string
	Fingerprint string
	Games       int
	UpdatedAt   time.Time
}

// Store provides thread-safe access to the fingerprint files.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// the first Put.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "synccache"),
	}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the fingerprint stored for key. ok is false when the library
// has never been synced.
func (s *Store) Get(key string) (fingerprint string, ok bool, err error) {
	path, err := s.pathFor(key)
	if err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read fingerprint %s: %w", key, err)
	}
	return string(data), true, nil
}

// Put records fingerprint for key.
func (s *Store) Put(key, fingerprint string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.WriteFileAtomic(path, []byte(fingerprint), 0o644); err != nil {
		return fmt.Errorf("persist fingerprint %s: %w", key, err)
	}
	s.logger.Debug("fingerprint stored",
		logging.String(logging.FieldLibrary, key),
		logging.Int("games", countIDs(fingerprint)),
	)
	return nil
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove fingerprint %s: %w", key, err)
	}
	return nil
}

// List returns every cached entry ordered by key.
func (s *Store) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("read fingerprint %s: %w", de.Name(), err)
		}
		entry := Entry{Key: de.Name(), Fingerprint: string(data), Games: countIDs(string(data))}
		if info, err := de.Info(); err == nil {
			entry.UpdatedAt = info.ModTime()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Clear forgets every fingerprint, forcing the next sync to treat all
// libraries as changed.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.ResetDir(s.dir); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.logger.Info("fingerprint cache cleared", logging.String(logging.FieldEventType, "cache_cleared"))
	return nil
}

func (s *Store) pathFor(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	if s.dir == "" {
		return "", errors.New("cache directory not configured")
	}
	return filepath.Join(s.dir, key), nil
}

func countIDs(fingerprint string) int {
	if fingerprint == "" {
		return 0
	}
	return strings.Count(fingerprint, ",") + 1
}

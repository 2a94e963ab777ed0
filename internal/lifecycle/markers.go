package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"srmsync/internal/fileutil"
)

// State is a tracked game's lifecycle state. Idle games have no entry.
type State string

const (
	StateIdle           State = "idle"
	StateInstallPending State = "install_pending"
	StateRunning        State = "running"
)

// MarkerStore persists per-game state.
type MarkerStore interface {
	Put(id uuid.UUID, state State) error
	Delete(id uuid.UUID) error
	List() (map[uuid.UUID]State, error)
	Clear() error
}

// DirStore keeps one file per game under a directory; the file holds the
// state name.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the marker directory.
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) Put(id uuid.UUID, state State) error {
	if err := fileutil.WriteFileAtomic(filepath.Join(s.dir, id.String()), []byte(state), 0o644); err != nil {
		return fmt.Errorf("write marker %s: %w", id, err)
	}
	return nil
}

func (s *DirStore) Delete(id uuid.UUID) error {
	if err := os.Remove(filepath.Join(s.dir, id.String())); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker %s: %w", id, err)
	}
	return nil
}

// List returns every marker. Files that are not named by a game ID are
// ignored; an empty marker reads as running.
func (s *DirStore) List() (map[uuid.UUID]State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[uuid.UUID]State{}, nil
		}
		return nil, fmt.Errorf("read marker dir: %w", err)
	}
	out := make(map[uuid.UUID]State, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		state := State(strings.TrimSpace(string(data)))
		if state == "" {
			state = StateRunning
		}
		out[id] = state
	}
	return out, nil
}

// Clear empties the marker directory.
func (s *DirStore) Clear() error {
	return fileutil.ResetDir(s.dir)
}

// MemoryStore keeps markers in memory.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[uuid.UUID]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[uuid.UUID]State)}
}

func (s *MemoryStore) Put(id uuid.UUID, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[id] = state
	return nil
}

func (s *MemoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, id)
	return nil
}

func (s *MemoryStore) List() (map[uuid.UUID]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]State, len(s.markers))
	for id, state := range s.markers {
		out[id] = state
	}
	return out, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = make(map[uuid.UUID]State)
	return nil
}

package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"srmsync/internal/services"
)

// Source provides the current host library.
type Source interface {
	Games(ctx context.Context) ([]Game, error)
}

// FileSource reads the JSON snapshot the host exports. The file is re-read
// on every call so callers always see the latest export.
type FileSource struct {
	path string
}

// NewFileSource constructs a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the snapshot location.
func (s *FileSource) Path() string {
	return s.path
}

// Games loads every game in the snapshot, hidden ones included.
func (s *FileSource) Games(ctx context.Context) ([]Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "library", "load snapshot", s.path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "library", "load snapshot", s.path, err)
	}
	var games []Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, services.Wrap(services.ErrValidation, "library", "decode snapshot", s.path, err)
	}
	for i, game := range games {
		if game.ID == uuid.Nil {
			return nil, services.Wrap(services.ErrValidation, "library", "decode snapshot", fmt.Sprintf("entry %d has no id", i), nil)
		}
	}
	return games, nil
}

// Find returns the game with id, reporting false when it is absent.
func Find(ctx context.Context, source Source, id uuid.UUID) (Game, bool, error) {
	games, err := source.Games(ctx)
	if err != nil {
		return Game{}, false, err
	}
	for _, game := range games {
		if game.ID == id {
			return game, true, nil
		}
	}
	return Game{}, false, nil
}

// StaticSource serves a fixed list, used by tests and one-shot CLI runs.
type StaticSource []Game

func (s StaticSource) Games(ctx context.Context) ([]Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Game(nil), s...), nil
}

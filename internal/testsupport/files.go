package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"srmsync/internal/library"
)

// WriteLibrary serializes games as a host library snapshot at path.
func WriteLibrary(t testing.TB, path string, games []library.Game) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if games == nil {
		games = []library.Game{}
	}
	data, err := json.Marshal(games)
	if err != nil {
		t.Fatalf("marshal library: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

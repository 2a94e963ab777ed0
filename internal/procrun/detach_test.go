package procrun_test

import (
	"path/filepath"
	"testing"

	"srmsync/internal/procrun"
)

func TestStartDetachedRejectsMissingExecutable(t *testing.T) {
	if err := procrun.StartDetached(" "); err == nil {
		t.Fatal("expected error for empty executable")
	}
	if err := procrun.StartDetached(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing executable")
	}
}

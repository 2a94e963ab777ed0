package procrun

import (
	"fmt"
	"os/exec"
	"strings"
)

// Starter launches a program without waiting for it.
type Starter func(executable string, args ...string) error

// StartDetached starts executable in its own session so it outlives the
// caller. The child is reaped in the background once it exits.
func StartDetached(executable string, args ...string) error {
	if strings.TrimSpace(executable) == "" {
		return fmt.Errorf("executable not configured")
	}
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", executable, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

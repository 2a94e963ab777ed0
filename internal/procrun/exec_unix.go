//go:build !windows

package procrun

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

type commandExecutor struct{}

func (commandExecutor) Execute(ctx context.Context, inv Invocation, output io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...) //nolint:gosec
	cmd.Dir = inv.WorkDir
	cmd.Stdout = output
	cmd.Stderr = output
	// Own process group and no controlling terminal: the tool cannot grab the
	// caller's TTY and every child it spawns dies with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = waitDelay
	return runCommand(cmd)
}

//go:build windows

package procrun

import (
	"context"
	"io"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

type commandExecutor struct{}

func (commandExecutor) Execute(ctx context.Context, inv Invocation, output io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...) //nolint:gosec
	cmd.Dir = inv.WorkDir
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
	cmd.WaitDelay = waitDelay
	return runCommand(cmd)
}

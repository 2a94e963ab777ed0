//go:build !windows

package procscan

import (
	"errors"

	"golang.org/x/sys/unix"
)

func (OSSignaler) Terminate(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGTERM))
}

func (OSSignaler) Kill(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGKILL))
}

func ignoreGone(err error) error {
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

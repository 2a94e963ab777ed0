//go:build windows

package procscan

import "os"

// Windows has no graceful signal for GUI processes; both end the process.
func (OSSignaler) Terminate(pid int) error {
	return OSSignaler{}.Kill(pid)
}

func (OSSignaler) Kill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return proc.Kill()
}

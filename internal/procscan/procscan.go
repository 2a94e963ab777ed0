package procscan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
)

// Process is one running process.
type Process struct {
	PID  int
	Name string
}

// Lister enumerates running processes.
type Lister interface {
	Processes() ([]Process, error)
}

// ProcFS lists processes from a procfs mount.
type ProcFS struct {
	root string
}

// NewProcFS returns a lister reading root, or procfs.DefaultMountPoint when
// root is empty.
func NewProcFS(root string) *ProcFS {
	if strings.TrimSpace(root) == "" {
		root = procfs.DefaultMountPoint
	}
	return &ProcFS{root: root}
}

// Processes returns every process whose name could be read. Processes that
// exit during the scan are skipped.
func (p *ProcFS) Processes() ([]Process, error) {
	fsys, err := procfs.NewFS(p.root)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", p.root, err)
	}
	procs, err := fsys.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, proc := range procs {
		comm, err := proc.Comm()
		if err != nil {
			continue
		}
		out = append(out, Process{PID: proc.PID, Name: comm})
	}
	return out, nil
}

// Static is a fixed process list.
type Static []Process

func (s Static) Processes() ([]Process, error) {
	return append([]Process(nil), s...), nil
}

// MatchName reports whether a process name refers to the named program.
// The kernel truncates comm to 15 bytes, so a truncated prefix of name also
// matches. A trailing .exe is ignored on both sides.
func MatchName(procName, name string) bool {
	procName = normalizeName(procName)
	name = normalizeName(name)
	if procName == "" || name == "" {
		return false
	}
	if procName == name {
		return true
	}
	const commLen = 15
	return len(procName) == commLen && strings.HasPrefix(name, procName)
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	return strings.TrimSuffix(name, ".exe")
}

// Find returns the processes matching name, excluding the current process.
func Find(lister Lister, name string) ([]Process, error) {
	procs, err := lister.Processes()
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	var matches []Process
	for _, proc := range procs {
		if proc.PID == self {
			continue
		}
		if MatchName(proc.Name, name) {
			matches = append(matches, proc)
		}
	}
	return matches, nil
}

// Running reports whether any process matches name.
func Running(lister Lister, name string) (bool, error) {
	matches, err := Find(lister, name)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program and how srmsync uses it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the result of checking one Requirement. Path is the resolved
// location when the program was found.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Missing reports whether the dependency blocks normal operation.
func (s Status) Missing() bool {
	return !s.Available && !s.Optional
}

// Check resolves req on PATH, or as a file when Command contains a separator.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("%q not found on PATH", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// CheckBinaries checks each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}

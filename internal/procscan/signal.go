package procscan

// Signaler asks processes to exit.
type Signaler interface {
	// Terminate requests a graceful exit.
	Terminate(pid int) error
	// Kill ends the process immediately.
	Kill(pid int) error
}

// OSSignaler signals real processes.
type OSSignaler struct{}

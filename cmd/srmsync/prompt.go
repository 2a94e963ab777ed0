package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"srmsync/internal/changes"
)

// promptConfirmer asks the session gates on a terminal. Without a terminal
// (or with --yes) it answers from fixed values instead of blocking.
type promptConfirmer struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
	stopSteam   bool
	restart     bool

	mu sync.Mutex
}

func newPromptConfirmer(in io.Reader, out io.Writer, assumeYes, stopSteam, restart bool) *promptConfirmer {
	return &promptConfirmer{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: isTerminal(in),
		assumeYes:   assumeYes,
		stopSteam:   stopSteam,
		restart:     restart,
	}
}

func (p *promptConfirmer) ConfirmSync(ctx context.Context, changed []changes.Change) bool {
	if p.assumeYes {
		return true
	}
	if !p.interactive {
		fmt.Fprintln(p.out, "Changes found but stdin is not a terminal; rerun with --yes to apply them")
		return false
	}
	var b strings.Builder
	b.WriteString("Libraries to sync:\n")
	for _, change := range changed {
		fmt.Fprintf(&b, "  - %s (%d games)\n", change.Group.Library.Name, len(change.Group.Games))
	}
	b.WriteString("Write Steam shortcuts for these libraries?")
	return p.ask(ctx, b.String())
}

func (p *promptConfirmer) ConfirmStopSteam(ctx context.Context) bool {
	if p.assumeYes || !p.interactive {
		return p.stopSteam
	}
	return p.ask(ctx, "Steam is running and must be closed. Close Steam now?")
}

func (p *promptConfirmer) ConfirmRestartSteam(ctx context.Context) bool {
	if p.assumeYes || !p.interactive {
		return p.restart
	}
	return p.ask(ctx, "Start Steam again?")
}

func (p *promptConfirmer) ask(ctx context.Context, question string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

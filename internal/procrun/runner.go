package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"srmsync/internal/logging"
	"srmsync/internal/services"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	Success  Outcome = "success"
	Failure  Outcome = "failure"
	TimedOut Outcome = "timed_out"
)

// waitDelay bounds how long Run waits for output pipes after the process
// group has been killed.
const waitDelay = 5 * time.Second

// tailBytes is how much trailing output is kept on a Result.
const tailBytes = 2048

// Invocation describes one external command execution.
type Invocation struct {
	Executable string
	Args       []string
	WorkDir    string
	Timeout    time.Duration
	// Label names the invocation in logs and output file names, e.g. "srm-enable".
	Label string
}

// Result reports the outcome of an invocation.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
	// Output holds the trailing bytes of combined stdout/stderr.
	Output string
	// LogPath is the file the full output was written to, when enabled.
	LogPath string
	Err     error
}

// Error converts a non-successful result into a classified error.
func (r Result) Error(step, operation string) error {
	switch r.Outcome {
	case Success:
		return nil
	case TimedOut:
		return services.Wrap(services.ErrTimeout, step, operation, "timed out", r.Err)
	default:
		msg := fmt.Sprintf("exit code %d", r.ExitCode)
		if r.ExitCode < 0 {
			msg = "did not run"
		}
		return services.Wrap(services.ErrExternalTool, step, operation, msg, r.Err)
	}
}

// Executor abstracts process execution for testability.
type Executor interface {
	// Execute runs the command to completion or until ctx is done. It returns
	// the exit code (-1 when the process never ran) and any start/wait error.
	Execute(ctx context.Context, inv Invocation, output io.Writer) (int, error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogDir enables per-invocation output capture under dir.
func WithLogDir(dir string) Option {
	return func(r *Runner) {
		r.logDir = strings.TrimSpace(dir)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner executes invocations. It is safe for concurrent use; concurrent
// invocations of the same executable are refused.
type Runner struct {
	exec   Executor
	logDir string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New constructs a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		exec:     commandExecutor{},
		logger:   logging.NewComponentLogger(logger, "procrun"),
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes inv and blocks until it exits, times out, or ctx is cancelled.
// A non-positive timeout yields TimedOut without starting the process.
func (r *Runner) Run(ctx context.Context, inv Invocation) Result {
	label := inv.Label
	if label == "" {
		label = filepath.Base(inv.Executable)
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("command", label))

	if inv.Timeout <= 0 {
		logger.Warn("invocation skipped; timeout is not positive",
			logging.String(logging.FieldEventType, "process_timeout"),
			logging.String(logging.FieldErrorHint, "raise the step timeout in config"),
			logging.String(logging.FieldImpact, "step reported as timed out"),
		)
		return Result{Outcome: TimedOut, ExitCode: -1, Err: context.DeadlineExceeded}
	}

	if !r.acquire(inv.Executable) {
		return Result{
			Outcome:  Failure,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: %s is still running", services.ErrBusy, label),
		}
	}
	defer r.release(inv.Executable)

	output, logPath, closeOutput := r.openOutput(label)
	defer closeOutput()

	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	logger.Info("process starting",
		logging.String(logging.FieldEventType, "process_start"),
		logging.Strings("args", inv.Args),
		logging.Duration("timeout", inv.Timeout),
	)
	start := r.now()
	exitCode, err := r.exec.Execute(runCtx, inv, output)
	result := Result{
		ExitCode: exitCode,
		Duration: r.now().Sub(start),
		Output:   output.tail(),
		LogPath:  logPath,
		Err:      err,
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Outcome = TimedOut
		if result.Err == nil {
			result.Err = context.DeadlineExceeded
		}
	case ctx.Err() != nil:
		result.Outcome = Failure
		result.Err = ctx.Err()
	case err == nil && exitCode == 0:
		result.Outcome = Success
	default:
		result.Outcome = Failure
	}

	attrs := []logging.Attr{
		logging.String("outcome", string(result.Outcome)),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
	}
	if logPath != "" {
		attrs = append(attrs, logging.String("output_log", logPath))
	}
	if result.Outcome == Success {
		logger.Info("process finished", logging.Args(append(attrs, logging.String(logging.FieldEventType, "process_complete"))...)...)
	} else {
		if result.Err != nil {
			attrs = append(attrs, logging.Error(result.Err))
		}
		logging.WarnWithContext(logger, "process did not succeed", "process_failed", append(attrs,
			logging.String(logging.FieldErrorHint, "inspect the output log for the tool's own error"),
			logging.String(logging.FieldImpact, "the calling step fails"),
		)...)
	}
	return result
}

func (r *Runner) acquire(executable string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[executable]; busy {
		return false
	}
	r.inFlight[executable] = struct{}{}
	return true
}

func (r *Runner) release(executable string) {
	r.mu.Lock()
	delete(r.inFlight, executable)
	r.mu.Unlock()
}

func (r *Runner) openOutput(label string) (*capture, string, func()) {
	c := &capture{}
	if r.logDir == "" {
		return c, "", func() {}
	}
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		logging.WarnWithContext(r.logger, "output log unavailable", "process_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "tool output is only kept in memory"),
		)
		return c, "", func() {}
	}
	name := fmt.Sprintf("%s-%s.log", r.now().Format("20060102T150405"), sanitizeLabel(label))
	path := filepath.Join(r.logDir, name)
	file, err := os.Create(path)
	if err != nil {
		logging.WarnWithContext(r.logger, "output log unavailable", "process_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "tool output is only kept in memory"),
		)
		return c, "", func() {}
	}
	c.file = file
	return c, path, func() { _ = file.Close() }
}

func sanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}

// capture keeps the trailing output in memory and mirrors everything to an
// optional file. Writes from stdout and stderr goroutines are serialized.
type capture struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	file *os.File
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		_, _ = c.file.Write(p)
	}
	c.buf.Write(p)
	if over := c.buf.Len() - tailBytes; over > tailBytes {
		c.buf.Next(over)
	}
	return len(p), nil
}

func (c *capture) tail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.buf.Bytes()
	if len(data) > tailBytes {
		data = data[len(data)-tailBytes:]
	}
	return strings.TrimSpace(string(data))
}

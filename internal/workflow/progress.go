package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"srmsync/internal/logging"
)

type progressEvent struct {
	index int
	total int
	label string
}

// progressDrain bounds how long a finished session waits for queued updates
// to reach the reporter.
var progressDrain = 2 * time.Second

// progressPump delivers step updates on its own goroutine so a slow or
// panicking reporter cannot stall or break a session. Updates that do not
// fit the buffer are dropped.
type progressPump struct {
	events chan progressEvent
	done   chan struct{}
}

func startProgress(reporter Progress, logger *slog.Logger) *progressPump {
	if reporter == nil {
		return nil
	}
	pump := &progressPump{
		events: make(chan progressEvent, len(stepOrder)+1),
		done:   make(chan struct{}),
	}
	go pump.run(reporter, logger)
	return pump
}

func (p *progressPump) report(step Step) {
	if p == nil {
		return
	}
	select {
	case p.events <- progressEvent{index: step.index(), total: len(stepOrder), label: step.Label()}:
	default:
	}
}

// close stops the pump and waits, up to progressDrain, for queued updates to
// be delivered. No update reaches the reporter after close returns unless
// the reporter outlasted the drain window.
func (p *progressPump) close() {
	if p == nil {
		return
	}
	close(p.events)
	timer := time.NewTimer(progressDrain)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
	}
}

func (p *progressPump) run(reporter Progress, logger *slog.Logger) {
	defer close(p.done)
	for event := range p.events {
		deliverProgress(reporter, event, logger)
	}
}

func deliverProgress(reporter Progress, event progressEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "progress reporter panicked", "progress_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "progress display may be incomplete"),
			)
		}
	}()
	reporter.Step(event.index, event.total, event.label)
}

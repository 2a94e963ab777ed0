package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"srmsync/internal/changes"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/notifications"
	"srmsync/internal/services"
)

// Deps are the collaborators of an Orchestrator. History and Metrics are
// optional; an empty LockPath disables the cross-process lock.
type Deps struct {
	Source    library.Source
	Detector  *changes.Detector
	Installer ToolInstaller
	Writer    ArtifactWriter
	Tool      ToolClient
	Steam     SteamController
	Notifier  notifications.Service
	History   SessionRecorder
	Metrics   *Metrics
	LockPath  string
}

// Orchestrator runs sync sessions one at a time.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	busy   atomic.Bool
	now    func() time.Time

	last atomic.Pointer[Report]
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(deps Deps, logger *slog.Logger) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "sync"),
		now:    time.Now,
	}
}

// Busy reports whether a session is running in this process.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// LastReport returns the most recent finished session, if any.
func (o *Orchestrator) LastReport() (Report, bool) {
	if r := o.last.Load(); r != nil {
		return *r, true
	}
	return Report{}, false
}

// Run executes one session. A session already running in this or another
// process yields OutcomeBusy without side effects.
func (o *Orchestrator) Run(ctx context.Context, req Request) Report {
	if req.Confirmer == nil {
		req.Confirmer = StaticConfirmer{}
	}
	if strings.TrimSpace(req.Trigger) == "" {
		req.Trigger = "manual"
	}

	if !o.busy.CompareAndSwap(false, true) {
		return o.rejectBusy(req, "session already running in this process")
	}
	defer o.busy.Store(false)

	lock, err := o.acquireLock()
	if err != nil {
		return o.rejectBusy(req, err.Error())
	}
	if lock != nil {
		defer func() { _ = lock.Unlock() }()
	}

	s := o.newSession(ctx, req)
	o.deps.Metrics.sessionStarted()
	s.logger.Info("sync session started",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("trigger", req.Trigger),
	)

	s.execute()
	return o.finish(s)
}

func (o *Orchestrator) acquireLock() (*flock.Flock, error) {
	path := strings.TrimSpace(o.deps.LockPath)
	if path == "" {
		return nil, nil
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrBusy, "busy_guard", "acquire sync lock", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrBusy, "busy_guard", "acquire sync lock", "another process holds "+path, nil)
	}
	return lock, nil
}

func (o *Orchestrator) rejectBusy(req Request, reason string) Report {
	now := o.now()
	report := Report{
		Trigger:    req.Trigger,
		Outcome:    OutcomeBusy,
		Err:        services.Wrap(services.ErrBusy, "busy_guard", "start session", reason, nil),
		StartedAt:  now,
		FinishedAt: now,
	}
	logging.WarnWithContext(o.logger, "sync session rejected", "session_busy",
		logging.String("trigger", req.Trigger),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "trigger ignored; the running session covers it"),
	)
	o.deps.Metrics.busyRejected()
	return report
}

func (o *Orchestrator) finish(s *session) Report {
	s.progress.close()
	report := s.report
	report.FinishedAt = o.now()

	switch report.Outcome {
	case OutcomeSucceeded:
		s.logger.Info("sync session succeeded",
			logging.String(logging.FieldEventType, "session_complete"),
			logging.Strings("libraries", report.ChangedLibraries()),
			logging.Int("games", report.ChangedGames()),
			logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		)
		o.notify(s, notifications.EventSyncCompleted, notifications.Payload{
			"libraries": report.ChangedLibraries(),
			"games":     report.ChangedGames(),
			"duration":  report.FinishedAt.Sub(report.StartedAt),
		})
	case OutcomeFailed:
		logging.ErrorWithContext(s.logger, "sync session failed", "session_failed",
			logging.Error(report.Err),
			logging.String("failure", services.FailureOutcome(report.Err)),
			logging.String(logging.FieldErrorHint, failureHint(report.Err)),
		)
		o.notify(s, notifications.EventSyncFailed, notifications.Payload{
			"outcome": services.FailureOutcome(report.Err),
			"error":   report.Err,
		})
	default:
		s.logger.Info("sync session ended",
			logging.String(logging.FieldEventType, "session_"+string(report.Outcome)),
			logging.String("outcome", string(report.Outcome)),
		)
	}

	o.record(s, report)
	o.deps.Metrics.sessionFinished(report)
	o.last.Store(&report)
	return report
}

func (o *Orchestrator) notify(s *session, event notifications.Event, payload notifications.Payload) {
	if err := o.deps.Notifier.Publish(s.ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("shutting down, notification not sent")
			return
		}
		logging.WarnWithContext(s.logger, "sync notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "session outcome was not pushed"),
		)
	}
}

func (o *Orchestrator) record(s *session, report Report) {
	if o.deps.History == nil {
		return
	}
	entry := history.Session{
		ID:         report.SessionID,
		Trigger:    report.Trigger,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Outcome:    string(report.Outcome),
		Steps:      report.Steps,
	}
	if report.Err != nil {
		entry.Failure = services.FailureOutcome(report.Err)
		entry.Error = report.Err.Error()
	}
	for _, change := range report.Changes {
		entry.Libraries = append(entry.Libraries, history.LibraryChange{
			Key:         change.Group.Library.Key(),
			Name:        change.Group.Library.Name,
			Games:       len(change.Group.Games),
			Fingerprint: change.Fingerprint,
			Changed:     change.Changed,
		})
	}
	// Recording uses a fresh context so a cancelled session is still logged.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.deps.History.Record(ctx, entry); err != nil {
		logging.WarnWithContext(s.logger, "record session history failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session missing from srmsync history"),
		)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "SRM did not finish in time; raise srm.add_timeout or srm.enable_timeout, or check the tool log"
	case errors.Is(err, services.ErrExternalTool):
		return "check the SRM tool log under paths.log_dir/tool"
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return "run srmsync config validate"
	case errors.Is(err, services.ErrNotFound):
		return "check host.library_path"
	default:
		return "check logs for details"
	}
}

func newSessionID() string {
	return uuid.NewString()
}

package workflow

import (
	"context"
	"log/slog"
	"time"

	"srmsync/internal/changes"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/logging"
	"srmsync/internal/procrun"
	"srmsync/internal/services"
)

// session holds the state of one Run.
type session struct {
	o        *Orchestrator
	ctx      context.Context
	req      Request
	logger   *slog.Logger
	progress *progressPump
	report   Report

	groups  []library.Group
	changed []changes.Change
}

type stepTimer struct {
	step  Step
	start time.Time
}

func (o *Orchestrator) newSession(ctx context.Context, req Request) *session {
	id := newSessionID()
	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)
	return &session{
		o:        o,
		ctx:      ctx,
		req:      req,
		logger:   logger,
		progress: startProgress(req.Progress, logger),
		report: Report{
			SessionID: id,
			Trigger:   req.Trigger,
			StartedAt: o.now(),
		},
	}
}

// execute walks the steps in order. Every early return before commit leaves
// the fingerprint cache untouched.
func (s *session) execute() {
	if !s.loadLibrary() {
		return
	}
	if !s.detectChanges() {
		return
	}
	if !s.confirm() {
		return
	}
	if !s.ensureTool() {
		return
	}
	parserIDs, ok := s.writeArtifacts()
	if !ok {
		return
	}
	if !s.stopSteam() {
		return
	}
	if !s.configure(parserIDs) {
		return
	}
	if !s.apply() {
		return
	}
	if !s.commit() {
		return
	}
	s.report.Outcome = OutcomeSucceeded
	s.restartSteam()
}

func (s *session) begin(step Step) stepTimer {
	s.progress.report(step)
	s.logger.Debug("step started",
		logging.String(logging.FieldStep, string(step)),
		logging.String(logging.FieldEventType, "step_start"),
	)
	return stepTimer{step: step, start: s.o.now()}
}

func (s *session) done(t stepTimer, outcome, detail string) {
	elapsed := s.o.now().Sub(t.start)
	s.report.Steps = append(s.report.Steps, history.Step{
		Name:     string(t.step),
		Outcome:  outcome,
		Duration: elapsed,
		Detail:   detail,
	})
	s.o.deps.Metrics.observeStep(t.step, elapsed)
	s.logger.Debug("step finished",
		logging.String(logging.FieldStep, string(t.step)),
		logging.String("outcome", outcome),
		logging.Duration("duration", elapsed),
	)
}

func (s *session) fail(t stepTimer, err error) bool {
	s.done(t, "failed", err.Error())
	s.report.Outcome = OutcomeFailed
	s.report.Err = err
	return false
}

func (s *session) end(t stepTimer, outcome Outcome, detail string) bool {
	s.done(t, string(outcome), detail)
	s.report.Outcome = outcome
	return false
}

func (s *session) loadLibrary() bool {
	t := s.begin(StepLoadLibrary)
	games, err := s.o.deps.Source.Games(s.ctx)
	if err != nil {
		return s.fail(t, err)
	}
	s.groups = library.GroupGames(games)
	s.done(t, "ok", "")
	s.logger.Info("library loaded",
		logging.Int("games", len(games)),
		logging.Int("libraries", len(s.groups)),
	)
	return true
}

func (s *session) detectChanges() bool {
	t := s.begin(StepDetectChanges)
	all, err := s.o.deps.Detector.ComputeChanges(s.groups)
	if err != nil {
		return s.fail(t, services.Wrap(services.ErrTransient, string(StepDetectChanges), "read sync cache", "", err))
	}
	s.report.Changes = all
	s.changed = changes.Changed(all)
	if len(s.changed) == 0 {
		return s.end(t, OutcomeNoChanges, "all libraries up to date")
	}
	s.done(t, "ok", "")
	s.logger.Info("libraries changed",
		logging.String(logging.FieldEventType, "changes_detected"),
		logging.Strings("libraries", s.report.ChangedLibraries()),
		logging.Int("unchanged", len(all)-len(s.changed)),
	)
	return true
}

func (s *session) confirm() bool {
	t := s.begin(StepConfirm)
	if !s.req.Confirmer.ConfirmSync(s.ctx, s.changed) {
		return s.end(t, OutcomeDeclined, "sync declined")
	}
	s.done(t, "ok", "")
	return true
}

func (s *session) ensureTool() bool {
	t := s.begin(StepEnsureTool)
	downloaded, err := s.o.deps.Installer.Ensure(s.ctx)
	if err != nil {
		return s.fail(t, err)
	}
	s.report.ToolDownloaded = downloaded
	detail := ""
	if downloaded {
		detail = "downloaded"
	}
	s.done(t, "ok", detail)
	return true
}

func (s *session) writeArtifacts() ([]string, bool) {
	t := s.begin(StepWriteArtifacts)
	changedGroups := make([]library.Group, 0, len(s.changed))
	for _, change := range s.changed {
		changedGroups = append(changedGroups, change.Group)
	}
	artifacts, err := s.o.deps.Writer.Write(s.groups, changedGroups)
	if err != nil {
		return nil, s.fail(t, err)
	}
	s.report.ParserIDs = artifacts.ParserIDs
	s.done(t, "ok", "")
	return artifacts.ParserIDs, true
}

func (s *session) stopSteam() bool {
	t := s.begin(StepStopSteam)
	steam := s.o.deps.Steam
	if steam == nil {
		s.done(t, "skipped", "steam control disabled")
		return true
	}
	running, err := steam.IsRunning(s.ctx)
	if err != nil {
		return s.fail(t, err)
	}
	if !running {
		s.done(t, "not_running", "")
		return true
	}
	if !s.req.Confirmer.ConfirmStopSteam(s.ctx) {
		return s.end(t, OutcomeAborted, "steam left running")
	}
	if err := steam.Stop(s.ctx); err != nil {
		return s.fail(t, err)
	}
	s.report.SteamStopped = true
	s.done(t, "stopped", "")
	return true
}

func (s *session) configure(parserIDs []string) bool {
	t := s.begin(StepConfigure)
	res := s.o.deps.Tool.Enable(s.ctx, parserIDs)
	return s.invoked(t, res, "srm enable")
}

func (s *session) apply() bool {
	t := s.begin(StepApply)
	res := s.o.deps.Tool.Add(s.ctx)
	return s.invoked(t, res, "srm add")
}

func (s *session) invoked(t stepTimer, res procrun.Result, operation string) bool {
	s.o.deps.Metrics.observeInvocation(t.step, res.Outcome)
	if res.Outcome != procrun.Success {
		return s.fail(t, res.Error(string(t.step), operation))
	}
	s.done(t, string(res.Outcome), res.LogPath)
	return true
}

func (s *session) commit() bool {
	t := s.begin(StepCommit)
	if err := s.o.deps.Detector.Commit(s.changed); err != nil {
		return s.fail(t, services.Wrap(services.ErrTransient, string(StepCommit), "write sync cache", "", err))
	}
	s.done(t, "ok", "")
	return true
}

// restartSteam runs after a successful commit; its failure is logged but
// does not change the session outcome.
func (s *session) restartSteam() {
	if !s.report.SteamStopped {
		return
	}
	t := s.begin(StepRestartSteam)
	if !s.req.Confirmer.ConfirmRestartSteam(s.ctx) {
		s.done(t, "declined", "")
		return
	}
	if err := s.o.deps.Steam.Start(s.ctx); err != nil {
		s.done(t, "failed", err.Error())
		logging.WarnWithContext(s.logger, "restart steam failed", "steam_restart_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "start Steam manually"),
			logging.String(logging.FieldImpact, "shortcuts were imported; Steam is not running"),
		)
		return
	}
	s.report.SteamRestarted = true
	s.done(t, "started", "")
}

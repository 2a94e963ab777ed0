package workflow

import (
	"context"
	"time"

	"srmsync/internal/changes"
	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/procrun"
	"srmsync/internal/services/srm"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeNoChanges Outcome = "no_changes"
	OutcomeDeclined  Outcome = "declined"
	OutcomeAborted   Outcome = "aborted"
	OutcomeBusy      Outcome = "busy"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Step names a session step. Order matches execution order.
type Step string

const (
	StepLoadLibrary    Step = "load_library"
	StepDetectChanges  Step = "detect_changes"
	StepConfirm        Step = "confirm"
	StepEnsureTool     Step = "ensure_tool"
	StepWriteArtifacts Step = "write_artifacts"
	StepStopSteam      Step = "stop_steam"
	StepConfigure      Step = "configure"
	StepApply          Step = "apply"
	StepCommit         Step = "commit_cache"
	StepRestartSteam   Step = "restart_steam"
)

var stepOrder = []Step{
	StepLoadLibrary,
	StepDetectChanges,
	StepConfirm,
	StepEnsureTool,
	StepWriteArtifacts,
	StepStopSteam,
	StepConfigure,
	StepApply,
	StepCommit,
	StepRestartSteam,
}

var stepLabels = map[Step]string{
	StepLoadLibrary:    "Loading library",
	StepDetectChanges:  "Detecting changes",
	StepConfirm:        "Waiting for confirmation",
	StepEnsureTool:     "Checking Steam ROM Manager",
	StepWriteArtifacts: "Writing manifests",
	StepStopSteam:      "Stopping Steam",
	StepConfigure:      "Enabling parsers",
	StepApply:          "Adding shortcuts to Steam",
	StepCommit:         "Saving sync state",
	StepRestartSteam:   "Restarting Steam",
}

// Label returns a human readable step name.
func (s Step) Label() string {
	if label, ok := stepLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Step) index() int {
	for i, step := range stepOrder {
		if step == s {
			return i + 1
		}
	}
	return 0
}

// Confirmer answers the three yes/no gates of a session.
type Confirmer interface {
	ConfirmSync(ctx context.Context, changed []changes.Change) bool
	ConfirmStopSteam(ctx context.Context) bool
	ConfirmRestartSteam(ctx context.Context) bool
}

// StaticConfirmer answers every gate from fixed values.
type StaticConfirmer struct {
	Sync         bool
	StopSteam    bool
	RestartSteam bool
}

func (c StaticConfirmer) ConfirmSync(context.Context, []changes.Change) bool { return c.Sync }
func (c StaticConfirmer) ConfirmStopSteam(context.Context) bool              { return c.StopSteam }
func (c StaticConfirmer) ConfirmRestartSteam(context.Context) bool           { return c.RestartSteam }

// Progress receives advisory step updates.
type Progress interface {
	Step(index, total int, label string)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(index, total int, label string)

func (f ProgressFunc) Step(index, total int, label string) { f(index, total, label) }

// ToolInstaller makes the SRM binary available.
type ToolInstaller interface {
	Ensure(ctx context.Context) (downloaded bool, err error)
}

// ArtifactWriter produces manifests and SRM configuration.
type ArtifactWriter interface {
	Write(all []library.Group, changed []library.Group) (srm.Artifacts, error)
}

// ToolClient invokes SRM.
type ToolClient interface {
	Enable(ctx context.Context, parserIDs []string) procrun.Result
	Add(ctx context.Context) procrun.Result
}

// SteamController reconciles the Steam client around SRM.
type SteamController interface {
	IsRunning(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// SessionRecorder stores finished sessions.
type SessionRecorder interface {
	Record(ctx context.Context, session history.Session) error
}

// Request describes one session trigger.
type Request struct {
	// Trigger names what started the session, e.g. "cli" or "watcher".
	Trigger   string
	Confirmer Confirmer
	Progress  Progress
}

// Report is the result of a session. Run never returns an error; failures
// are captured in Err.
type Report struct {
	SessionID      string
	Trigger        string
	Outcome        Outcome
	Changes        []changes.Change
	ParserIDs      []string
	Steps          []history.Step
	SteamStopped   bool
	SteamRestarted bool
	ToolDownloaded bool
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ChangedLibraries returns the names of libraries that were re-synced.
func (r Report) ChangedLibraries() []string {
	var names []string
	for _, change := range r.Changes {
		if change.Changed {
			names = append(names, change.Group.Library.Name)
		}
	}
	return names
}

// ChangedGames counts the games in changed libraries.
func (r Report) ChangedGames() int {
	n := 0
	for _, change := range r.Changes {
		if change.Changed {
			n += len(change.Group.Games)
		}
	}
	return n
}

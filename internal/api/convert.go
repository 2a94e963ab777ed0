package api

import (
	"time"

	"github.com/google/uuid"

	"srmsync/internal/history"
	"srmsync/internal/library"
	"srmsync/internal/lifecycle"
	"srmsync/internal/services"
	"srmsync/internal/workflow"
)

// FromSession converts a stored history session.
func FromSession(s history.Session) Session {
	dto := Session{
		ID:         s.ID,
		Trigger:    s.Trigger,
		Outcome:    s.Outcome,
		Failure:    s.Failure,
		Error:      s.Error,
		StartedAt:  formatTime(s.StartedAt),
		FinishedAt: formatTime(s.FinishedAt),
		DurationMS: s.Duration().Milliseconds(),
	}
	for _, lib := range s.Libraries {
		dto.Libraries = append(dto.Libraries, Library{
			Key:     lib.Key,
			Name:    lib.Name,
			Games:   lib.Games,
			Changed: lib.Changed,
		})
	}
	dto.Steps = fromSteps(s.Steps)
	return dto
}

// FromSessions converts a slice of history sessions.
func FromSessions(sessions []history.Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s))
	}
	return out
}

// FromReport converts an in-memory session report.
func FromReport(r workflow.Report) Session {
	dto := Session{
		ID:         r.SessionID,
		Trigger:    r.Trigger,
		Outcome:    string(r.Outcome),
		StartedAt:  formatTime(r.StartedAt),
		FinishedAt: formatTime(r.FinishedAt),
		DurationMS: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
	if r.Err != nil {
		dto.Failure = services.FailureOutcome(r.Err)
		dto.Error = r.Err.Error()
	}
	for _, change := range r.Changes {
		dto.Libraries = append(dto.Libraries, Library{
			Key:     change.Group.Library.Key(),
			Name:    change.Group.Library.Name,
			Games:   len(change.Group.Games),
			Changed: change.Changed,
		})
	}
	dto.Steps = fromSteps(r.Steps)
	return dto
}

// FromGames converts library games, attaching the tracked lifecycle state.
// Games without an entry in states are idle. Input order is kept.
func FromGames(games []library.Game, states map[uuid.UUID]lifecycle.State) []Game {
	out := make([]Game, 0, len(games))
	for _, game := range games {
		state, ok := states[game.ID]
		if !ok {
			state = lifecycle.StateIdle
		}
		out = append(out, Game{
			ID:        game.ID.String(),
			Name:      game.Name,
			Library:   library.Lookup(game.PluginID).Name,
			Installed: game.Installed,
			State:     string(state),
		})
	}
	return out
}

// TrackedGames renders non-idle lifecycle states keyed by game ID.
func TrackedGames(states map[uuid.UUID]lifecycle.State) map[string]string {
	if len(states) == 0 {
		return nil
	}
	out := make(map[string]string, len(states))
	for id, state := range states {
		out[id.String()] = string(state)
	}
	return out
}

func fromSteps(steps []history.Step) []Step {
	if len(steps) == 0 {
		return nil
	}
	out := make([]Step, 0, len(steps))
	for _, step := range steps {
		out = append(out, Step{
			Name:       step.Name,
			Outcome:    step.Outcome,
			DurationMS: step.Duration.Milliseconds(),
			Detail:     step.Detail,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

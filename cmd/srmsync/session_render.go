package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"srmsync/internal/api"
)

var outcomeTitle = cases.Title(language.English)

func outcomeLabel(outcome string) string {
	return outcomeTitle.String(strings.ReplaceAll(outcome, "_", " "))
}

func outcomeKind(outcome string) statusKind {
	switch outcome {
	case "succeeded", "no_changes":
		return statusOK
	case "failed":
		return statusError
	case "declined", "aborted", "busy":
		return statusWarn
	default:
		return statusInfo
	}
}

func formatDurationMS(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}

func renderSession(out io.Writer, session api.Session, colorize bool) {
	detail := outcomeLabel(session.Outcome)
	if session.Failure != "" {
		detail = fmt.Sprintf("%s (%s)", detail, session.Failure)
	}
	fmt.Fprintln(out, renderStatusLine("Outcome", outcomeKind(session.Outcome), detail, colorize))
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, session.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDurationMS(session.DurationMS), colorize))
	if session.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, session.Error, colorize))
	}
	if len(session.Libraries) == 0 {
		return
	}
	rows := make([][]string, 0, len(session.Libraries))
	for _, lib := range session.Libraries {
		rows = append(rows, []string{lib.Name, strconv.Itoa(lib.Games), yesNo(lib.Changed)})
	}
	fmt.Fprint(out, renderTable([]string{"Library", "Games", "Changed"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
}

func sessionRows(sessions []api.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		changed := 0
		for _, lib := range s.Libraries {
			if lib.Changed {
				changed++
			}
		}
		outcome := outcomeLabel(s.Outcome)
		if s.Failure != "" {
			outcome += " (" + s.Failure + ")"
		}
		rows = append(rows, []string{
			s.StartedAt,
			s.Trigger,
			outcome,
			strconv.Itoa(changed),
			formatDurationMS(s.DurationMS),
		})
	}
	return rows
}

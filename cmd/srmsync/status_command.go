package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"srmsync/internal/api"
	"srmsync/internal/config"
	"srmsync/internal/daemonctl"
	"srmsync/internal/deps"
	"srmsync/internal/history"
	"srmsync/internal/ipc"
	"srmsync/internal/lifecycle"
)

type statusView struct {
	Daemon   api.DaemonStatus `json:"daemon"`
	Outcomes map[string]int   `json:"outcomes,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and last sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := buildStatusView(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}
			renderStatusView(cmd.OutOrStdout(), view, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildStatusView(ctx context.Context, cmdCtx *commandContext) (statusView, error) {
	cfg := cmdCtx.configValue()
	var view statusView
	err := cmdCtx.withClient(func(client *ipc.Client) error {
		resp, err := client.Status()
		if err != nil {
			return err
		}
		view.Daemon = *resp
		return nil
	})
	switch {
	case errors.Is(err, daemonctl.ErrDaemonNotRunning):
		view.Daemon = offlineStatus(ctx, cfg)
	case err != nil:
		return view, err
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return view, err
	}
	defer store.Close()
	counts, err := store.OutcomeCounts(ctx)
	if err != nil {
		return view, err
	}
	view.Outcomes = counts
	if view.Daemon.LastSession == nil {
		if recent, err := store.Recent(ctx, 1); err == nil && len(recent) == 1 {
			last := api.FromSession(recent[0])
			view.Daemon.LastSession = &last
		}
	}
	return view, nil
}

func offlineStatus(_ context.Context, cfg *config.Config) api.DaemonStatus {
	status := api.DaemonStatus{
		LockFilePath: cfg.DaemonLockPath(),
		HistoryPath:  cfg.HistoryPath(),
		LibraryPath:  cfg.Host.LibraryPath,
	}
	for _, dep := range deps.CheckAll(cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	if markers, err := lifecycle.NewDirStore(cfg.Paths.TrackingDir).List(); err == nil && len(markers) > 0 {
		status.TrackedGames = make(map[string]string, len(markers))
		for id, state := range markers {
			status.TrackedGames[id.String()] = string(state)
		}
	}
	return status
}

func renderStatusView(out io.Writer, view statusView, colorize bool) {
	status := view.Daemon
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		detail := fmt.Sprintf("pid %d", status.PID)
		if status.StartedAt != "" {
			detail += ", since " + status.StartedAt
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}
	syncDetail := "idle"
	switch {
	case status.SyncInProgress && status.SyncQueued:
		syncDetail = "running, another queued"
	case status.SyncInProgress:
		syncDetail = "running"
	case status.SyncQueued:
		syncDetail = "queued"
	}
	fmt.Fprintln(out, renderStatusLine("Sync", statusInfo, syncDetail, colorize))
	fmt.Fprintln(out, renderStatusLine("Library snapshot", statusInfo, status.LibraryPath, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Last Sync", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.LastSession == nil {
		fmt.Fprintln(out, renderStatusLine("Session", statusInfo, "none recorded", colorize))
	} else {
		renderSession(out, *status.LastSession, colorize)
	}

	if len(view.Outcomes) > 0 {
		fmt.Fprintln(out)
		keys := make([]string, 0, len(view.Outcomes))
		for k := range view.Outcomes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{outcomeLabel(k), strconv.Itoa(view.Outcomes[k])})
		}
		fmt.Fprint(out, renderTable([]string{"Outcome", "Sessions"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(status.TrackedGames) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Tracked Games", colorize) {
			fmt.Fprintln(out, line)
		}
		ids := make([]string, 0, len(status.TrackedGames))
		for id := range status.TrackedGames {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintln(out, renderStatusLine(id[:min(8, len(id))], statusInfo, status.TrackedGames[id], colorize))
		}
	}
}

func dependencyLines(list []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(list)+1)
	var missing []string
	for _, dep := range list {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"srmsync/internal/api"
	"srmsync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show recent sync sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			store, err := history.Open(ctx.configValue().HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				session, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if session == nil {
					return fmt.Errorf("session %s not found", args[0])
				}
				dto := api.FromSession(*session)
				if jsonOutput {
					return writeJSON(cmd, dto)
				}
				renderSession(out, dto, shouldColorize(out))
				if len(dto.Steps) > 0 {
					rows := make([][]string, 0, len(dto.Steps))
					for _, step := range dto.Steps {
						rows = append(rows, []string{step.Name, step.Outcome, formatDurationMS(step.DurationMS), step.Detail})
					}
					fmt.Fprint(out, renderTable([]string{"Step", "Outcome", "Duration", "Detail"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
				}
				return nil
			}

			sessions, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			dtos := api.FromSessions(sessions)
			if jsonOutput {
				return writeJSON(cmd, api.SessionListResponse{Sessions: dtos})
			}
			if len(dtos) == 0 {
				fmt.Fprintln(out, "No sync sessions recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Started", "Trigger", "Outcome", "Changed", "Duration"},
				sessionRows(dtos),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"srmsync/internal/api"
	"srmsync/internal/ipc"
	"srmsync/internal/workflow"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var assumeYes bool
	var stopSteam bool
	var restartSteam bool
	var viaDaemon bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync changed libraries into Steam",
		Long: "Detect libraries whose game set changed since the last successful sync, " +
			"write SRM parser manifests for them, and run SRM to add Steam shortcuts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if !cmd.Flags().Changed("stop-steam") {
				stopSteam = cfg.Sync.StopSteam
			}
			if !cmd.Flags().Changed("restart-steam") {
				restartSteam = cfg.Sync.RestartSteam
			}

			var session api.Session
			if viaDaemon {
				err := ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.Sync("cli", true)
					if err != nil {
						return err
					}
					if resp.Session == nil {
						return errors.New("daemon returned no session")
					}
					session = *resp.Session
					return nil
				})
				if err != nil {
					return err
				}
			} else {
				stack, _, err := ctx.stack()
				if err != nil {
					return err
				}
				defer stack.Close()

				progress := &progressPrinter{out: cmd.ErrOrStderr()}
				report := stack.Orchestrator.Run(cmd.Context(), workflow.Request{
					Trigger:   "cli",
					Confirmer: newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), assumeYes, stopSteam, restartSteam),
					Progress:  progress,
				})
				progress.stop()
				session = api.FromReport(report)
			}

			if jsonOutput {
				if err := writeJSON(cmd, session); err != nil {
					return err
				}
			} else {
				renderSession(cmd.OutOrStdout(), session, shouldColorize(cmd.OutOrStdout()))
			}
			if session.Outcome == string(workflow.OutcomeFailed) {
				return fmt.Errorf("sync failed: %s", session.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply changes without prompting")
	cmd.Flags().BoolVar(&stopSteam, "stop-steam", false, "Close a running Steam without prompting (default from sync.stop_steam)")
	cmd.Flags().BoolVar(&restartSteam, "restart-steam", false, "Start Steam again after a sync that closed it (default from sync.restart_steam)")
	cmd.Flags().BoolVar(&viaDaemon, "daemon", false, "Run the session inside the running daemon")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the session as JSON")
	return cmd
}

// progressPrinter writes step updates until stop is called. Updates arrive
// asynchronously and may trail the end of the session.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	stopped bool
}

func (p *progressPrinter) Step(index, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	fmt.Fprintf(p.out, "[%d/%d] %s\n", index, total, label)
}

func (p *progressPrinter) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

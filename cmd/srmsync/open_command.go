package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"srmsync/internal/daemon"
	"srmsync/internal/daemonctl"
	"srmsync/internal/ipc"
	"srmsync/internal/lifecycle"
)

const pendingCheckInterval = 250 * time.Millisecond

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "open <uri>",
		Short: "Start or install a game from a Steam shortcut launch URI",
		Long: "Handles the URI a synced Steam shortcut passes on launch. Installed games are started; " +
			"missing ones are installed. The running daemon tracks the request when available; " +
			"otherwise it is handled in-process and, for installs, the command waits until the install settles.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := strings.TrimSpace(args[0])
			err := ctx.withClient(func(client *ipc.Client) error {
				_, err := client.OpenURI(uri)
				return err
			})
			if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}

			stack, logger, err := ctx.stack()
			if err != nil {
				return err
			}
			defer stack.Close()
			tracker := stack.NewTracker(logger)
			defer tracker.Close()

			tracker.HandleURI(cmd.Context(), uri)
			if noWait {
				return nil
			}
			rawID, parseErr := lifecycle.ParseLaunchURI(stack.Config.Host.URIScheme, uri)
			if parseErr != nil {
				return nil
			}
			id, parseErr := uuid.Parse(rawID)
			if parseErr != nil {
				return nil
			}
			if !tracker.Pending(id) {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for install to finish...")
			ticker := time.NewTicker(pendingCheckInterval)
			defer ticker.Stop()
			for tracker.Pending(id) {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Install tracking finished (state: %s)\n", tracker.State(id))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return immediately after dispatching an install")
	return cmd
}

func newEventCommand(ctx *commandContext) *cobra.Command {
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "Report host launcher game events",
	}
	for _, event := range []daemon.GameEvent{daemon.GameStopped, daemon.GameInstalled} {
		eventCmd.AddCommand(newGameEventCommand(ctx, event))
	}
	return eventCmd
}

func newGameEventCommand(ctx *commandContext, event daemon.GameEvent) *cobra.Command {
	return &cobra.Command{
		Use:   string(event) + " <game-id>",
		Short: fmt.Sprintf("Report that a game was %s", event),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID := strings.TrimSpace(args[0])
			err := ctx.withClient(func(client *ipc.Client) error {
				_, err := client.GameEvent(string(event), gameID)
				return err
			})
			if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}

			// Without a daemon only the persisted marker needs clearing.
			id, err := uuid.Parse(gameID)
			if err != nil {
				return fmt.Errorf("invalid game id %q: %w", gameID, err)
			}
			return lifecycle.NewDirStore(ctx.configValue().Paths.TrackingDir).Delete(id)
		},
	}
}

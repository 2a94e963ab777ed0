package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"srmsync/internal/daemonctl"
	"srmsync/internal/ipc"
	"srmsync/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(out, resp.Message)
				}
				return nil
			})
			if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}

			cfg := ctx.configValue()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(out, "ntfy topic not configured")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "test notification sent")
			return nil
		},
	}
}

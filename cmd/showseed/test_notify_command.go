package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showseed/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test event through the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if resp != nil && resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				}
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if resp != nil && resp.Message == "" {
					if resp.Sent {
						fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
					}
				}
				return nil
			})
		},
	}
}

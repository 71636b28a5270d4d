package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"showseed/internal/ipc"
)

func newLimitsCommand(ctx *commandContext) *cobra.Command {
	var down, up int
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Set global download and upload caps in kB/s (0 = unlimited)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("down") && !cmd.Flags().Changed("up") {
				return errors.New("specify --down and/or --up")
			}
			if down < 0 || up < 0 {
				return errors.New("rate caps must not be negative")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("down") {
				down = cfg.Torrent.MaxDownloadKBps
			}
			if !cmd.Flags().Changed("up") {
				up = cfg.Torrent.MaxUploadKBps
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetLimits(down, up)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Applied {
					fmt.Fprintln(out, "Torrent engine is not running; limits not applied")
					return nil
				}
				fmt.Fprintf(out, "Limits applied: down %s, up %s\n", formatKBps(down), formatKBps(up))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "Download cap in kB/s")
	cmd.Flags().IntVar(&up, "up", 0, "Upload cap in kB/s")
	return cmd
}

func formatKBps(v int) string {
	if v <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d kB/s", v)
}

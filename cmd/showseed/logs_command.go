package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"showseed/internal/ipc"
)

const logFollowWait = 5000

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobKey string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines < 0 {
				return errors.New("--lines must not be negative")
			}
			runCtx := cmd.Context()
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				req := ipc.LogTailRequest{Offset: -1, Limit: lines, JobKey: strings.TrimSpace(jobKey)}
				for {
					resp, err := client.LogTail(req)
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					if !follow {
						return nil
					}
					if runCtx.Err() != nil {
						return nil
					}
					req = ipc.LogTailRequest{
						Offset:     resp.Offset,
						Follow:     true,
						WaitMillis: logFollowWait,
						JobKey:     req.JobKey,
					}
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobKey, "job", "", "Only show lines mentioning this job key")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "showseed",
		Short:         "Download TV episodes over BitTorrent, import them, and seed to a ratio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Daemon socket path (default <log_dir>/showseed.sock)")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newDaemonCommands(ctx)...)
	rootCmd.AddCommand(
		newDaemonRunCommand(ctx),
		newAddCommand(ctx),
		newListCommand(ctx),
		newRemoveCommand(ctx),
		newLimitsCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return rootCmd
}

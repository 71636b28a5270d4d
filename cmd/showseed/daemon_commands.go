package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"showseed/internal/daemonctl"
	"showseed/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the showseed daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), LogLevel: logLevel},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.AlreadyRunning {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}
			fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	var grace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the showseed daemon, persisting active jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(ctx.socketPath(), cfg.PIDPath(), grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", grace, result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "How long to wait for jobs to be persisted before killing the daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, preflight and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil && snap == nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			printStatus(cmd, snap)
			return err
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit JSON instead of text")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func printStatus(cmd *cobra.Command, snap *daemonctl.Snapshot) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	status := snap.Status

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Running {
		detail := "Running"
		if status.PID > 0 {
			detail = fmt.Sprintf("Running (pid %d, since %s)", status.PID, status.StartedAt.Local().Format(time.DateTime))
		}
		fmt.Fprintln(stdout, renderStatusLine("showseed", statusOK, detail, colorize))
		engineKind := statusInfo
		if status.EngineRunning {
			engineKind = statusOK
		}
		fmt.Fprintln(stdout, renderStatusLine("Torrent engine", engineKind, yesNo(status.EngineRunning), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("showseed", statusError, "Not running", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Log file", statusInfo, status.LogPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Snapshot", statusInfo, status.SnapshotPath, colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, check := range status.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if !status.Running {
		if snap.PersistedJobs > 0 {
			fmt.Fprintf(stdout, "%d job(s) persisted; they resume when the daemon starts\n", snap.PersistedJobs)
		} else {
			fmt.Fprintln(stdout, "No persisted jobs")
		}
		return
	}
	rows := phaseRows(status)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No active jobs")
		return
	}
	fmt.Fprint(stdout, renderTable([]column{left("Phase"), right("Count")}, rows))
}

func phaseRows(status *ipc.StatusResponse) [][]string {
	phases := make([]string, 0, len(status.Phases))
	for phase, count := range status.Phases {
		if count > 0 {
			phases = append(phases, phase)
		}
	}
	sort.Strings(phases)
	rows := make([][]string, 0, len(phases))
	for _, phase := range phases {
		rows = append(rows, []string{phase, strconv.Itoa(status.Phases[phase])})
	}
	return rows
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"showseed/internal/engine"
	"showseed/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		key           string
		episodes      []string
		postProcessed bool
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "add <magnet|url|file.torrent>",
		Short: "Admit a torrent and wait for it to start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor, err := readDescriptor(args[0])
			if err != nil {
				return err
			}
			refs, err := parseEpisodeRefs(episodes)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobAdd(ipc.JobAddRequest{
					Descriptor:    descriptor,
					Key:           strings.TrimSpace(key),
					PostProcessed: postProcessed,
					Episodes:      refs,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Job)
				}
				name := resp.Job.Name
				if name == "" {
					name = "(metadata pending)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s [%s] %s\n", resp.Job.Key, resp.Job.Phase, name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Job key (defaults to a hash of the descriptor)")
	cmd.Flags().StringArrayVarP(&episodes, "episode", "e", nil, "Linked episode as show_id:season:episode (repeatable)")
	cmd.Flags().BoolVar(&postProcessed, "post-processed", false, "Seed only; skip copying into the library")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

// readDescriptor returns magnet and http(s) arguments verbatim and reads
// anything else as a metainfo file.
func readDescriptor(arg string) ([]byte, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("descriptor is required")
	}
	if engine.IsLazyDescriptor(arg) {
		return []byte(arg), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read torrent file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("torrent file %s is empty", arg)
	}
	return data, nil
}

func parseEpisodeRefs(values []string) ([]ipc.EpisodeRef, error) {
	refs := make([]ipc.EpisodeRef, 0, len(values))
	for _, value := range values {
		parts := strings.Split(strings.TrimSpace(value), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid episode %q: expected show_id:season:episode", value)
		}
		nums := make([]int, 3)
		for i, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid episode %q: %q is not a non-negative number", value, part)
			}
			nums[i] = n
		}
		refs = append(refs, ipc.EpisodeRef{ShowID: nums[0], Season: nums[1], Episode: nums[2]})
	}
	return refs, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		phases []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(phases...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Jobs)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No active jobs")
					return nil
				}
				fmt.Fprint(stdout, renderTable(jobColumns, buildJobRows(resp.Jobs, shouldColorize(stdout))))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&phases, "phase", "p", nil, "Only list jobs in these phases")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

var jobColumns = []column{
	left("Key"), left("Name"), left("Phase"),
	right("Progress"), right("Size"), right("Down"), right("Up"), right("Ratio"),
	left("Processed"),
}

func buildJobRows(views []ipc.JobView, colorize bool) [][]string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		name := v.Name
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			shortKey(v.Key),
			name,
			colorPhase(v.Phase, colorize),
			formatProgress(v.Progress),
			formatSize(v.TotalSize),
			formatRate(v.DownloadRate),
			formatRate(v.UploadRate),
			strconv.FormatFloat(v.Ratio, 'f', 2, 64),
			yesNo(v.PostProcessed),
		})
	}
	return rows
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func formatProgress(p float64) string {
	if p < 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", p*100)
}

func formatSize(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func formatRate(bps int64) string {
	if bps < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bps)) + "/s"
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var keepFiles bool
	cmd := &cobra.Command{
		Use:     "remove <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a job from the engine",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.JobRemove(key, !keepFiles); err != nil {
					return err
				}
				if keepFiles {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (files kept)\n", key)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Leave downloaded data on disk")
	return cmd
}

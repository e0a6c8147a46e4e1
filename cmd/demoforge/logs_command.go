package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"demoforge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		cli    bool
		filter logs.Filter
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon or CLI log output",
		Long: "Print the tail of the daemon log (log_dir/demoforged.log), or the log of\n" +
			"inline CLI runs with --cli. Use --project to narrow to one project.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := "demoforged.log"
			if cli {
				name = "demoforge.log"
			}
			path := filepath.Join(cfg.Paths.LogDir, name)
			out := cmd.OutOrStdout()

			// Read everything when filtering so -n counts matching lines.
			window := lines
			if !filter.Empty() {
				window = -1
			}
			var tail []string
			var offset int64
			if window < 0 {
				tail, offset, err = logs.ReadFrom(path, 0)
			} else {
				tail, offset, err = logs.Last(path, window)
			}
			if err != nil {
				return err
			}
			matched := make([]string, 0, len(tail))
			for _, line := range tail {
				if filter.Match(line) {
					matched = append(matched, line)
				}
			}
			if lines >= 0 && len(matched) > lines {
				matched = matched[len(matched)-lines:]
			}
			for _, line := range matched {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&cli, "cli", false, "Read the inline run log instead of the daemon log")
	cmd.Flags().StringVarP(&filter.ProjectID, "project", "p", "", "Only lines for this project ID")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "analytics <id>",
		Short: "Show view statistics for a project's video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				summary, err := p.Analytics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Views:           %d (%d unique)\n", summary.TotalViews, summary.UniqueViewers)
				fmt.Fprintf(out, "Plays:           %d\n", summary.Plays)
				fmt.Fprintf(out, "Completions:     %d (%.1f%%)\n", summary.Completes, summary.CompletionRate)
				fmt.Fprintf(out, "Avg watch time:  %.1fs\n", summary.AverageWatchTime)
				if summary.LastViewed != nil {
					fmt.Fprintf(out, "Last viewed:     %s\n", summary.LastViewed.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

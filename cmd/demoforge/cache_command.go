package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"demoforge/internal/textutil"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the stage output cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				resp, err := p.CacheStats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				stats := resp.Stats
				if !stats.Enabled {
					fmt.Fprintln(out, "Cache is disabled (cache.enabled = false)")
					return nil
				}
				fmt.Fprintf(out, "Directory: %s\n", stats.Dir)
				fmt.Fprintf(out, "Entries:   %d (%s)\n", stats.Entries, textutil.FormatBytes(stats.Bytes))
				fmt.Fprintf(out, "Hit rate:  %.0f%% (%d hits, %d misses, %d expired)\n", resp.HitRate*100, stats.Hits, stats.Misses, stats.Expired)
				if len(stats.ByStage) == 0 {
					return nil
				}
				stages := make([]string, 0, len(stats.ByStage))
				for stage := range stats.ByStage {
					stages = append(stages, stage)
				}
				slices.Sort(stages)
				rows := make([][]string, 0, len(stages))
				for _, stage := range stages {
					s := stats.ByStage[stage]
					rows = append(rows, []string{stage, strconv.Itoa(s.Entries), textutil.FormatBytes(s.Bytes)})
				}
				fmt.Fprint(out, renderTable([]string{"Stage", "Entries", "Size"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				removed, err := p.PruneCache(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries\n", removed)
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries for one stage or the whole cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				removed, err := p.ClearCache(cmd.Context(), stage)
				if err != nil {
					return err
				}
				scope := "all stages"
				if stage != "" {
					scope = stage
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries (%s)\n", removed, scope)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "Only clear this stage (analyzing, scripting, capturing, voicing, assembling)")
	return cmd
}

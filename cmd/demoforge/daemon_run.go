package main

import (
	"github.com/spf13/cobra"

	"demoforge/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var development bool
	var diagnostic bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the demoforge daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(cfg),
				Development: development,
				Diagnostic:  diagnostic,
				Version:     version,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Write a separate DEBUG log under log_dir/debug")
	return cmd
}

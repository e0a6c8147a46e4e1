package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"demoforge/internal/api"
	"demoforge/internal/progress"
	"demoforge/internal/project"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var viaDaemon bool
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run the pipeline for a project and show live progress",
		Long: "Run the pipeline in this process. Stages with a valid cache entry are\n" +
			"skipped, so re-running a failed project resumes at the failed stage.\n" +
			"With --daemon the run is handed to the daemon instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if viaDaemon {
				return runOnDaemon(cmd, ctx, args[0])
			}
			return runInline(cmd, ctx, args[0])
		},
	}
	cmd.Flags().BoolVar(&viaDaemon, "daemon", false, "Hand the run to the daemon and follow its progress")
	return cmd
}

func runInline(cmd *cobra.Command, ctx *commandContext, id string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.runLogger(cfg)
	if err != nil {
		return err
	}
	req := api.RunProjectRequest{Config: cfg, ProjectID: id, Logger: logger}
	if stageAdapters != nil {
		if req.Adapters, err = stageAdapters(cfg); err != nil {
			return err
		}
	}
	printer := newProgressPrinter(cmd.OutOrStdout())
	req.OnProgress = printer.Print

	p, runErr := api.RunProject(cmd.Context(), req)
	printer.Finish()
	if runErr != nil {
		return runErr
	}
	return reportOutcome(cmd.OutOrStdout(), p)
}

func reportOutcome(out io.Writer, p *project.Project) error {
	if p == nil {
		return nil
	}
	if p.Stage == project.StageFailed {
		return fmt.Errorf("project %s failed during %s: %s", p.ID, p.FailedStage, p.ErrorMessage)
	}
	if p.Video != nil {
		fmt.Fprintf(out, "Video: %s (%.1fs)\n", p.Video.Path, p.Video.Duration)
	}
	return nil
}

func runOnDaemon(cmd *cobra.Command, ctx *commandContext, id string) error {
	client, err := ctx.requireDaemon(cmd.Context())
	if err != nil {
		return err
	}
	accepted, err := client.Run(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run accepted for %s\n", accepted.ProjectID)
	return followProgress(cmd, ctx, accepted.ProjectID)
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id>",
		Short: "Follow a daemon run's progress until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return followProgress(cmd, ctx, args[0])
		},
	}
}

func followProgress(cmd *cobra.Command, ctx *commandContext, id string) error {
	client, err := ctx.requireDaemon(cmd.Context())
	if err != nil {
		return err
	}
	printer := newProgressPrinter(cmd.OutOrStdout())
	last, err := client.FollowProgress(cmd.Context(), id, printer.Print)
	printer.Finish()
	if err != nil {
		return err
	}
	switch last.Stage {
	case progress.StageFailed:
		return errors.New(last.Error)
	case progress.StageComplete:
		detail, err := client.GetProject(cmd.Context(), id)
		if err == nil && detail.Video != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Video: %s (%.1fs)\n", detail.Video.Path, detail.Video.Duration)
		}
	}
	return nil
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Stop a daemon run at the next stage boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.requireDaemon(cmd.Context())
			if err != nil {
				return err
			}
			result, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch result.Outcome {
			case api.CancelRequested:
				fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for %s (in %s)\n", result.ProjectID, result.Stage)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s is not running\n", result.ProjectID)
			}
			return nil
		},
	}
}

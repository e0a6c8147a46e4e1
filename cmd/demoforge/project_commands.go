package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"demoforge/internal/api"
	"demoforge/internal/textutil"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Create and inspect demo projects",
	}
	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectDeleteCommand(ctx))
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateRequest
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project from a repository or website URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				detail, err := p.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, detail)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", detail.ID, detail.Name)
				fmt.Fprintf(cmd.OutOrStdout(), "Run it with: demoforge run %s\n", detail.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.RepoURL, "repo", "", "GitHub repository URL")
	cmd.Flags().StringVar(&req.WebsiteURL, "website", "", "Product website URL")
	cmd.Flags().StringVar(&req.Name, "name", "", "Project name (defaults to the repository name)")
	cmd.Flags().StringVar(&req.Audience, "audience", "developer", "Target audience (developer, investor, customer, general)")
	cmd.Flags().IntVar(&req.TargetLength, "length", 0, "Target video length in seconds")
	cmd.Flags().StringVar(&req.Language, "language", "", "Narration language (BCP 47 tag)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var stages []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				projects, err := p.List(cmd.Context(), stages)
				if err != nil {
					return err
				}
				projects = api.SortProjectsNewestFirst(projects)
				if jsonOut {
					if projects == nil {
						projects = []api.Project{}
					}
					return writeJSON(cmd, projects)
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Audience", "Stage", "Progress", "Runs", "Created"},
					projectRows(projects),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&stages, "stage", "s", nil, "Filter by stage (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func projectRows(projects []api.Project) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		stage := p.Stage
		if p.Running {
			stage += " *"
		}
		pct := ""
		if p.Progress != nil {
			pct = api.FormatPercent(p.Progress.Fraction)
		}
		rows = append(rows, []string{
			p.ID,
			textutil.Truncate(p.Name, 32),
			p.Audience,
			stage,
			pct,
			strconv.Itoa(p.RunCount),
			shortTimestamp(p.CreatedAt),
		})
	}
	return rows
}

// shortTimestamp trims an API timestamp to minutes.
func shortTimestamp(value string) string {
	if len(value) >= 16 {
		return strings.Replace(value[:16], "T", " ", 1)
	}
	return value
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its script and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				detail, err := p.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, detail)
				}
				printProjectDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printProjectDetail(out io.Writer, d api.ProjectDetail) {
	field := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(out, "%-14s %s\n", label+":", value)
		}
	}
	field("ID", d.ID)
	field("Name", d.Name)
	field("Repository", d.RepoURL)
	field("Website", d.WebsiteURL)
	field("Audience", d.Audience)
	field("Target", fmt.Sprintf("%ds (%s)", d.TargetLength, d.Language))
	field("Stage", d.Stage)
	if d.Running {
		field("Running", "yes")
	}
	field("Failed stage", d.FailedStage)
	field("Error", d.ErrorMessage)
	field("Runs", strconv.Itoa(d.RunCount))
	field("Created", shortTimestamp(d.CreatedAt))
	field("Last run", shortTimestamp(d.LastRunAt))
	if d.Progress != nil {
		field("Progress", fmt.Sprintf("%s %s", api.FormatPercent(d.Progress.Fraction), d.Progress.Message))
	}
	if d.Video != nil {
		field("Video", d.Video.Path)
		field("Duration", fmt.Sprintf("%.1fs", d.Video.Duration))
		if d.Video.SizeBytes > 0 {
			field("Size", textutil.FormatBytes(d.Video.SizeBytes))
		}
		field("Subtitles", d.Video.SubtitlePath)
		field("Archive", d.Video.ArchivePath)
	}

	if d.Script != nil && len(d.Script.Scenes) > 0 {
		fmt.Fprintf(out, "\nScript: %s (%.0fs)\n", d.Script.Title, d.Script.TotalDuration)
		rows := make([][]string, 0, len(d.Script.Scenes))
		for _, scene := range d.Script.Scenes {
			rows = append(rows, []string{
				scene.ID,
				string(scene.Type),
				fmt.Sprintf("%.1fs", scene.Duration),
				textutil.Truncate(scene.Narration, 60),
			})
		}
		fmt.Fprint(out, renderTable([]string{"Scene", "Type", "Duration", "Narration"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}
	if len(d.CaptureFailures) > 0 {
		fmt.Fprintln(out, "\nCapture failures:")
		for _, f := range d.CaptureFailures {
			fmt.Fprintf(out, "  %s: %s\n", f.SegmentID, f.Error)
		}
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and its output files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProjects(cmd.Context(), func(p projectAPI) error {
				if err := p.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
				return nil
			})
		},
	}
}

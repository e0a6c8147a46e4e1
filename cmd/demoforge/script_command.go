package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"demoforge/internal/api"
)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Work with demo scripts",
	}

	var toStdout bool
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a project's script as YAML for editing",
		Long: "Write the project's generated script as YAML. By default the file goes to\n" +
			"paths.script_dir/<id>.yaml, where scripter.source = \"file\" picks it up.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := api.ExportScriptRequest{Config: cfg, ProjectID: args[0]}
			if toStdout {
				req.Output = cmd.OutOrStdout()
			}
			result, err := api.ExportScript(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !toStdout {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote script to %s\n", result.Path)
			}
			return nil
		},
	}
	exportCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the YAML instead of writing a file")
	scriptCmd.AddCommand(exportCmd)
	return scriptCmd
}

// Command demoforged runs the demoforge daemon in the foreground. It is
// equivalent to `demoforge daemon` and exists for service managers that
// expect a dedicated binary.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"demoforge/internal/config"
	"demoforge/internal/daemonrun"
)

var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "demoforged:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath  string
		logLevel    string
		development bool
		diagnostic  bool
	)
	cmd := &cobra.Command{
		Use:           "demoforged",
		Short:         "Run the demoforge daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonOptions(logLevel, development, diagnostic))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Write a separate DEBUG log under log_dir/debug")
	return cmd
}

func daemonOptions(logLevel string, development, diagnostic bool) daemonrun.Options {
	return daemonrun.Options{
		LogLevel:    logLevel,
		Development: development,
		Diagnostic:  diagnostic,
		Version:     version,
	}
}

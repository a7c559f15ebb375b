// Package commands implements the drover CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/pkg/telemetry"
)

var (
	// Global flags
	logLevel   string
	logFormat  string
	jsonOutput bool

	// logger is built by the root PersistentPreRunE and shared by all
	// subcommands.
	logger = telemetry.NopLogger()
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drover",
		Short: "drover - declarative remote configuration applier",
		Long: `drover applies a declarative YAML play to the hosts of a YAML inventory,
locally or over SSH. Modules are idempotent: a host already in the desired
state reports ok instead of repeating side effects. Changed tasks can notify
handlers, which fire once per host after its task sequence completes.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := telemetry.NewLogger(telemetry.LoggingConfig{
				Level:  logLevel,
				Format: logFormat,
				Output: "stderr",
			})
			if err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}
			logger = l
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output reports in JSON format")

	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

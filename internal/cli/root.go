package cli

import (
	"github.com/spf13/cobra"

	"redirect-agent-backend/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "redirect-agent",
		Short:         "Conversational redirect agent",
		Long:          "redirect-agent routes free-text questions to the service that can handle them and answers with a UI card.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, silent); overrides LOG_LEVEL")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newLogger(level, format string) *logging.Logger {
	if logLevel != "" {
		level = logLevel
	}
	if format == "console" {
		return logging.NewConsole(level)
	}
	return logging.New(nil, level)
}

package commands

import (
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fetchguard",
		Short:        "Fetch Metadata request isolation gateway",
		Long:         `fetchguard rejects cross-site requests using the Sec-Fetch-* headers before they reach the protected application.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewServeCmd(),
		NewCheckCmd(),
		NewTokenCmd(),
	)

	return cmd
}

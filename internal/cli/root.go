// Package cli implements the parley command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Terminal client for conversations",
		Long:          "parley reads and sends messages in your conversations from the terminal.\nRun with no arguments to open the interactive UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("server", "", "Service base URL (overrides config)")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newInboxCmd(),
		newSendCmd(),
		newArchiveCmd(),
		newUnreadCmd(),
		newTuiCmd(),
	)

	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/chattui"
)

func newTuiCmd() *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			server, _ := cmd.Flags().GetString("server")
			return chattui.Launch(configPath, server, theme)
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "Theme: dark|light (overrides config)")
	return cmd
}

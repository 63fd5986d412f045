package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/api"
)

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <conversation-id>",
		Short: "Toggle a conversation's archived state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}

			conversationID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return Exitf(ExitCodeFailure, "invalid conversation id %q", args[0])
			}

			conv, err := app.Client.ToggleArchive(cmd.Context(), conversationID)
			if err != nil {
				if errors.Is(err, api.ErrAccessDenied) {
					return Exitf(ExitCodeAuth, "no access to conversation %d", conversationID)
				}
				return Exitf(ExitCodeFailure, "toggle archive: %v", err)
			}

			state := "unarchived"
			if conv.Archived() {
				state = "archived"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conversation %d %s\n", conv.ID, state)
			return nil
		},
	}
}

func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the total unread message count",
		Long:  "Prints the unread total across all conversations. Useful for shell prompts and status bars.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}

			count, err := app.Client.UnreadCount(cmd.Context())
			if err != nil {
				return Exitf(ExitCodeFailure, "fetch unread count: %v", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

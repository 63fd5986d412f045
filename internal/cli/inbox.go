package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/chat"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List conversations, newest activity first",
		Args:  cobra.NoArgs,
		RunE:  runInbox,
	}
	cmd.Flags().String("search", "", "Filter by participant name or group title")
	cmd.Flags().Bool("archived", false, "Include archived conversations")
	cmd.Flags().Bool("json", false, "Machine-readable output")
	return cmd
}

func runInbox(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}

	search, _ := cmd.Flags().GetString("search")
	includeArchived, _ := cmd.Flags().GetBool("archived")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	conversations, err := app.Client.ListConversations(cmd.Context(), search)
	if err != nil {
		return Exitf(ExitCodeFailure, "list conversations: %v", err)
	}

	if !includeArchived {
		filtered := conversations[:0]
		for _, conv := range conversations {
			if !conv.Archived() {
				filtered = append(filtered, conv)
			}
		}
		conversations = filtered
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(conversations, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode conversations: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	if len(conversations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations")
		return nil
	}

	viewerID := app.Credentials.UserID
	rows := make([][]string, 0, len(conversations))
	for _, conv := range conversations {
		rows = append(rows, []string{
			strconv.FormatInt(conv.ID, 10),
			conv.DisplayTitle(viewerID),
			unreadBadge(conv.UnreadCount),
			previewLine(conv),
			humanize.Time(conv.LastActivityAt()),
		})
	}
	return writeTable(cmd.OutOrStdout(), []string{"ID", "CONVERSATION", "UNREAD", "LAST MESSAGE", "WHEN"}, rows)
}

func unreadBadge(count int) string {
	if count == 0 {
		return ""
	}
	return strconv.Itoa(count)
}

// previewLine is the one-line summary shown in the inbox: the last
// message body, or a placeholder for deleted and attachment-only ones.
func previewLine(conv chat.Conversation) string {
	last := conv.LastMessage
	if last == nil {
		return ""
	}
	if last.Deleted() {
		return "(deleted)"
	}
	body := strings.TrimSpace(last.Body)
	if body == "" && len(last.Attachments) > 0 {
		return fmt.Sprintf("(%d attachment(s))", len(last.Attachments))
	}
	if line, _, cut := strings.Cut(body, "\n"); cut {
		body = line + " …"
	} else {
		body = line
	}
	const maxPreview = 60
	return runewidth.Truncate(body, maxPreview, "…")
}

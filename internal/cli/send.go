package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/chat"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <conversation-id> [body]",
		Short: "Send a message to a conversation",
		Long:  "Sends a message. The body comes from the argument, --file, or stdin when piped.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSend,
	}
	cmd.Flags().StringArray("attach", nil, "File to attach (repeatable, order preserved)")
	cmd.Flags().String("file", "", "Read the message body from a file (- for stdin)")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}

	conversationID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return Exitf(ExitCodeFailure, "invalid conversation id %q", args[0])
	}

	bodyArg := ""
	if len(args) > 1 {
		bodyArg = args[1]
	}
	filePath, _ := cmd.Flags().GetString("file")
	attachments, _ := cmd.Flags().GetStringArray("attach")

	body, err := resolveSendBody(cmd, bodyArg, filePath)
	if err != nil {
		return err
	}

	draft := chat.Draft{Body: body, Files: attachments}
	if err := draft.Validate(); err != nil {
		return Exitf(ExitCodeFailure, "nothing to send: provide a body or --attach")
	}

	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			return Exitf(ExitCodeFailure, "attachment %s: %v", path, err)
		}
	}

	err = app.Client.SendMessage(cmd.Context(), conversationID, draft, uuid.NewString())
	if err != nil {
		if errors.Is(err, api.ErrAccessDenied) {
			return Exitf(ExitCodeAuth, "no access to conversation %d", conversationID)
		}
		return Exitf(ExitCodeFailure, "send message: %v", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Sent")
	return nil
}

func resolveSendBody(cmd *cobra.Command, bodyArg, filePath string) (string, error) {
	if bodyArg != "" && filePath != "" {
		return "", Exitf(ExitCodeFailure, "provide the body as an argument or via --file, not both")
	}
	if bodyArg != "" {
		return bodyArg, nil
	}
	if filePath == "" {
		return "", nil
	}
	if filePath == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read stdin: %v", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", Exitf(ExitCodeFailure, "read body file: %v", err)
	}
	return string(data), nil
}

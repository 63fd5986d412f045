package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/config"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API token for the conversation service",
		Long:  "Prompts for an API token, verifies it against the server and saves it to the credentials file.",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	cmd.Flags().String("token", "", "Token to save (prompts if omitted)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.BaseURL == "" {
		return Exitf(ExitCodeFailure, "no server configured, set server.base_url or pass --server")
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token, err = promptToken(cmd)
		if err != nil {
			return err
		}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Exitf(ExitCodeFailure, "no token provided")
	}

	client, err := api.New(api.Config{
		BaseURL:    cfg.Server.BaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: cfg.Server.Timeout},
	})
	if err != nil {
		return Exitf(ExitCodeFailure, "init client: %v", err)
	}

	me, err := client.Me(cmd.Context())
	if err != nil {
		if errors.Is(err, api.ErrAccessDenied) {
			return Exitf(ExitCodeAuth, "server rejected the token")
		}
		return Exitf(ExitCodeFailure, "verify token: %v", err)
	}

	store := config.NewCredentialStore("")
	if err := store.Save(&config.Credentials{Token: token, UserID: me.UserID}); err != nil {
		return Exitf(ExitCodeFailure, "save credentials: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, token saved to %s\n", me.Name, store.Path())
	return nil
}

func promptToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", Exitf(ExitCodeFailure, "stdin is not a terminal, pass --token instead")
	}

	fmt.Fprint(cmd.OutOrStdout(), "API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", Exitf(ExitCodeFailure, "read token: %v", err)
	}
	return string(raw), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewCredentialStore("")
			if err := store.Clear(); err != nil {
				return Exitf(ExitCodeFailure, "remove credentials: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

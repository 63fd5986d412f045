package chattui

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/store"
)

// Execute runs the TUI entry command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	var (
		configPath string
		server     string
		theme      string
	)
	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Interactive conversation UI",
		Long:          "Bubbletea-based terminal UI for conversations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(configPath, server, theme)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&server, "server", "", "Service base URL (overrides config)")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme: dark|light (overrides config)")
	return cmd
}

// Launch starts the interactive UI. Empty strings fall back to the
// config file.
func Launch(configPath, server, theme string) error {
	return runTUI(configPath, server, theme)
}

func runTUI(configPath, server, theme string) error {
	loader := config.NewLoader()
	if configPath != "" {
		loader.SetConfigFile(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if server != "" {
		cfg.Server.BaseURL = server
	}
	if theme != "" {
		cfg.TUI.Theme = theme
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("no server configured, set server.base_url or pass --server")
	}

	creds, err := config.NewCredentialStore("").Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds.IsEmpty() {
		return fmt.Errorf("not logged in, run `parley login` first")
	}

	// The terminal owns stdout; logs go to the configured file or are
	// dropped.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = "json"
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logCfg.Output = f
	} else {
		devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err == nil {
			defer devNull.Close()
			logCfg.Output = devNull
		}
	}
	logging.Init(logCfg)

	client, err := api.New(api.Config{
		BaseURL:    cfg.Server.BaseURL,
		Token:      creds.Token,
		HTTPClient: &http.Client{Timeout: cfg.Server.Timeout},
	})
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	cache, err := store.Open(cfg.Cache.Path)
	if err != nil {
		// The cache is an optimization; run without it rather than fail.
		logging.Warn().Err(err).Msg("cache unavailable")
		cache = nil
	} else {
		defer cache.Close()
	}

	subscriber, err := channel.NewDialer(channel.Config{
		URLFor: client.EventsURL,
		Token:  creds.Token,
	})
	if err != nil {
		return fmt.Errorf("init live channel: %w", err)
	}

	return Run(Config{
		Client:         client,
		Subscriber:     subscriber,
		Store:          cache,
		ViewerID:       creds.UserID,
		Theme:          cfg.TUI.Theme,
		PageSize:       cfg.Server.PageSize,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
	})
}

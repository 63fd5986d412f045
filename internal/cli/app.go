package cli

import (
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
)

// App bundles the loaded configuration, credentials and API client that
// most commands need.
type App struct {
	Config      *config.Config
	Credentials *config.Credentials
	Client      *api.Client
}

func setupLogging(cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return Exitf(ExitCodeFailure, "open log file: %v", err)
		}
		logCfg.Output = f
	}
	logging.Init(logCfg)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load config: %v", err)
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.Server.BaseURL = strings.TrimSpace(server)
	}
	return cfg, nil
}

// loadApp loads config and credentials and builds an authenticated
// client. Commands that work without a token use loadConfig directly.
func loadApp(cmd *cobra.Command) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(cfg); err != nil {
		return nil, err
	}

	creds, err := config.NewCredentialStore("").Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load credentials: %v", err)
	}
	if creds.IsEmpty() {
		return nil, Exitf(ExitCodeAuth, "not logged in, run `parley login` first")
	}
	if cfg.Server.BaseURL == "" {
		return nil, Exitf(ExitCodeFailure, "no server configured, set server.base_url or pass --server")
	}

	client, err := api.New(api.Config{
		BaseURL:    cfg.Server.BaseURL,
		Token:      creds.Token,
		HTTPClient: &http.Client{Timeout: cfg.Server.Timeout},
	})
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "init client: %v", err)
	}

	return &App{Config: cfg, Credentials: creds, Client: client}, nil
}

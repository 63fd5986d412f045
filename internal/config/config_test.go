package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit config file must exist")

	loader := NewLoader()
	cfg, err = loader.Load()
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Server.PageSize)
	require.Equal(t, 15*time.Second, cfg.Server.Timeout)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "dark", cfg.TUI.Theme)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  base_url: https://chat.example.com
  page_size: 25
logging:
  level: debug
tui:
  theme: light
  show_timestamps: true
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "https://chat.example.com", cfg.Server.BaseURL)
	require.Equal(t, 25, cfg.Server.PageSize)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "light", cfg.TUI.Theme)
	require.True(t, cfg.TUI.ShowTimestamps)
	// File values merge over defaults.
	require.Equal(t, 15*time.Second, cfg.Server.Timeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_SERVER_BASE_URL", "http://localhost:8080")
	t.Setenv("PARLEY_LOGGING_LEVEL", "warn")

	cfg, err := LoadDefault()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.BaseURL = "ftp://nope"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.PageSize = 0
	require.Error(t, cfg.Validate())
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credentials.yaml"))

	creds, err := store.Load()
	require.NoError(t, err)
	require.True(t, creds.IsEmpty())

	require.NoError(t, store.Save(&Credentials{Token: "tok-123", UserID: 42}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "tok-123", loaded.Token)
	require.Equal(t, int64(42), loaded.UserID)
	require.False(t, loaded.UpdatedAt.IsZero())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, store.Clear())
	creds, err = store.Load()
	require.NoError(t, err)
	require.True(t, creds.IsEmpty())
}

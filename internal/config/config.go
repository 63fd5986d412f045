// Package config handles Parley configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for Parley.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Cache settings
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// ServerConfig contains connection settings for the conversation service.
type ServerConfig struct {
	// BaseURL is the service root, e.g. https://chat.example.com.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each REST request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// PageSize is the message page size for thread history.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// CacheConfig contains local cache settings.
type CacheConfig struct {
	// Path is the SQLite cache file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Theme selects the color theme (dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps renders a timestamp on every message row instead of
	// only on group heads.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfigDir returns the directory config and credentials live in.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "parley")
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout:  15 * time.Second,
			PageSize: 50,
		},
		Cache: CacheConfig{
			Path: filepath.Join(DefaultConfigDir(), "cache.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: TUIConfig{
			Theme: "dark",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("server.base_url must be an http(s) URL, got %q", c.Server.BaseURL)
		}
	}
	if c.Server.PageSize <= 0 {
		return fmt.Errorf("server.page_size must be positive, got %d", c.Server.PageSize)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Package config loads the application configuration from an optional YAML
// file, with struct-tag defaults and environment overrides for the values
// that are deployment-specific (remote store endpoint and credentials).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized by Load. They take precedence over the
// YAML file so credentials never need to live on disk.
const (
	EnvRemoteURL   = "TREMOLINK_REMOTE_URL"
	EnvRemoteToken = "TREMOLINK_REMOTE_TOKEN"
	EnvUserID      = "TREMOLINK_USER"
)

// BandConfig controls discovery and connection behavior.
type BandConfig struct {
	// Name is the advertised local name the band is discovered by.
	Name string `yaml:"name" default:"Arduino"`

	// ScanTimeout bounds discovery; scanning stops after this even when no
	// matching peer was found.
	ScanTimeout time.Duration `yaml:"scan_timeout" default:"10s"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`

	// SettleDelay is the pause after service discovery before the first
	// write, to accommodate peer-side readiness.
	SettleDelay time.Duration `yaml:"settle_delay" default:"300ms"`
}

// HistoryConfig controls local and remote session persistence.
type HistoryConfig struct {
	// CachePath is the local SQLite cache location. Empty means
	// ~/.tremolink/history.db.
	CachePath string `yaml:"cache_path"`

	// RemoteURL is the base URL of the remote session store. Empty disables
	// remote mirroring.
	RemoteURL   string `yaml:"remote_url"`
	RemoteToken string `yaml:"remote_token"`

	// UserID keys remote documents. Normally supplied by the auth provider;
	// the config value is a fallback for headless use.
	UserID string `yaml:"user_id"`
}

// SessionConfig controls session reconstruction.
type SessionConfig struct {
	// LiveWindow is how many recent frequency samples the live view retains.
	LiveWindow int `yaml:"live_window" default:"20"`
}

// Config is the root application configuration.
type Config struct {
	Band    BandConfig    `yaml:"band"`
	History HistoryConfig `yaml:"history"`
	Session SessionConfig `yaml:"session"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads configuration from path (optional, "" skips the file), applies
// defaults for anything unset, then environment overrides. A .env file in the
// working directory is honored when present.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env file is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		// Unmarshal over the defaults; fields absent from the file keep them.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.History.RemoteURL = v
	}
	if v := os.Getenv(EnvRemoteToken); v != "" {
		cfg.History.RemoteToken = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		cfg.History.UserID = v
	}

	return cfg, nil
}

// CachePath resolves the local cache location, defaulting under the user's
// home directory.
func (c *Config) CachePath() (string, error) {
	if c.History.CachePath != "" {
		return c.History.CachePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tremolink", "history.db"), nil
}

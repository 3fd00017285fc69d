package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/auth"
	"github.com/srg/tremolink/internal/band"
	"github.com/srg/tremolink/internal/config"
	"github.com/srg/tremolink/internal/history"
)

// loadConfig resolves the --config flag into a full configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the local session cache and, when a remote is configured,
// wires up mirroring keyed by the signed-in user.
func openStore(cfg *config.Config, logger *logrus.Logger) (*history.Store, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache path: %w", err)
	}

	cache, err := history.OpenCache(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session cache: %w", err)
	}

	var remote history.RemoteStore
	var userID string
	if cfg.History.RemoteURL != "" {
		provider := auth.NewStaticProvider(cfg.History.UserID)
		user, ok := provider.CurrentUser()
		if !ok {
			_ = cache.Close()
			return nil, fmt.Errorf("remote store configured but no user: %w", auth.ErrNotSignedIn)
		}
		userID = user.ID
		remote = history.NewHTTPRemoteStore(cfg.History.RemoteURL, cfg.History.RemoteToken, logger)
	}

	store := history.NewStore(cache, remote, userID, logger)
	if err := store.LoadAll(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return store, nil
}

// withBand discovers and connects to the band, runs fn against the live
// manager, and always tears the link down afterwards.
func withBand(ctx context.Context, cfg *config.Config, logger *logrus.Logger, fn func(*band.Manager) error) error {
	mgr := band.NewManager(&cfg.Band, logger)
	if err := mgr.StartDiscovery(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Disconnect(); err != nil {
			logger.WithField("error", err).Warn("Disconnect failed")
		}
	}()
	return fn(mgr)
}

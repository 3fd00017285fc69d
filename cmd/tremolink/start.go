package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/band"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start automatic suppression",
	Long: `Connect to the band and start sensor-driven automatic suppression.

The band begins a suppression session using its onboard tremor detection.
Use 'tremolink monitor' to watch the session and have it recorded.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withBand(ctx, cfg, logger, func(mgr *band.Manager) error {
		if err := band.NewDispatcher(mgr, logger).StartAutomatic(); err != nil {
			return err
		}
		fmt.Println("Automatic suppression started")
		return nil
	})
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/band"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop suppression",
	Long: `Connect to the band and stop whatever suppression mode is running.

By default every mode is halted. Use --auto to stop only the automatic
sensor-driven mode and leave a manual setting in place.`,
	RunE: runStop,
}

var stopAutoOnly bool

func init() {
	stopCmd.Flags().BoolVar(&stopAutoOnly, "auto", false, "Stop only automatic suppression")
}

func runStop(cmd *cobra.Command, args []string) error {
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
		dispatcher := band.NewDispatcher(mgr, logger)
		if stopAutoOnly {
			if err := dispatcher.StopAutomatic(); err != nil {
				return err
			}
			fmt.Println("Automatic suppression stopped")
			return nil
		}
		if err := dispatcher.StopAll(); err != nil {
			return err
		}
		fmt.Println("All suppression stopped")
		return nil
	})
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/band"
)

// intensityCmd represents the intensity command
var intensityCmd = &cobra.Command{
	Use:   "intensity <level>",
	Short: "Set a fixed manual suppression intensity",
	Long: `Connect to the band and set a fixed manual suppression intensity.

The level is a percentage from 0 to 100. Values outside the range are
clamped. Setting an intensity switches the band out of automatic mode.`,
	Args: cobra.ExactArgs(1),
	RunE: runIntensity,
}

func runIntensity(cmd *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid intensity %q: must be an integer", args[0])
	}

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
		applied, err := band.NewDispatcher(mgr, logger).SetIntensity(level)
		if err != nil {
			return err
		}
		fmt.Printf("Manual intensity set to %d\n", applied)
		return nil
	})
}

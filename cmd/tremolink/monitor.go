package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/band"
	"github.com/srg/tremolink/internal/history"
	"github.com/srg/tremolink/internal/report"
	"github.com/srg/tremolink/internal/session"
	"github.com/srg/tremolink/internal/wire"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to the band and record suppression sessions",
	Long: `Connect to the band, stream live tremor telemetry, and record completed
suppression sessions into history.

Sessions started on the band (from this tool or the band's own controls) are
reconstructed from telemetry and stored locally, then mirrored to the remote
store when one is configured. Press Ctrl+C to stop monitoring; a session in
progress at that point is discarded.`,
	RunE: runMonitor,
}

var monitorDuration time.Duration

func init() {
	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "Monitoring duration (0 for indefinite)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.WithField("error", closeErr).Warn("Failed to close history store")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorDuration)
		defer cancel()
	}

	recordColor := color.New(color.FgGreen, color.Bold)
	samples := report.NewSampleBuffer(report.DefaultSampleCapacity)

	recorded := 0
	sink := func(rec session.Record) {
		store.Append(rec)
		store.SaveDailySeries(report.DailySeries(store.Sessions()))
		store.SaveSamples(samples.Snapshot())
		recorded++
		recordColor.Printf("Session recorded: mode=%s duration=%ds reduction=%.1f%% avg=%.2fHz\n",
			rec.Mode, rec.DurationSeconds, rec.ReductionPercent, rec.AvgFrequencyHz)
	}
	reconciler := session.NewReconciler(logger, sink,
		session.WithLiveWindow(cfg.Session.LiveWindow))

	return withBand(ctx, cfg, logger, func(mgr *band.Manager) error {
		fmt.Println("Connected. Monitoring telemetry (Ctrl+C to stop)...")

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var sessionStart time.Time

		for {
			select {
			case <-ctx.Done():
				if reconciler.InSession() {
					logger.Info("Monitoring interrupted mid-session, discarding partial session")
					reconciler.Abort()
				}
				fmt.Printf("\nMonitoring stopped. %d session(s) recorded.\n", recorded)
				return nil

			case state := <-mgr.States():
				if state == band.Disconnected {
					reconciler.Abort()
					return ErrConnectionLost
				}

			case <-ticker.C:
				if reconciler.InSession() && !sessionStart.IsZero() {
					elapsed := time.Since(sessionStart).Round(time.Second)
					fmt.Printf("session running: %s\n", elapsed)
				}

			case event := <-mgr.Telemetry():
				switch ev := event.(type) {
				case wire.SessionStarted:
					sessionStart = time.Now()
				case wire.FrequencySample:
					samples.Add(history.SamplePoint{Value: ev.Hz, Timestamp: ev.At})
					fmt.Printf("tremor: %.2f Hz\n", ev.Hz)
				case wire.SessionStopped:
					sessionStart = time.Time{}
				}
				reconciler.Handle(event)
			}
		}
	})
}

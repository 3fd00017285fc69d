package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/report"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show weekly and monthly effectiveness summaries",
	Long: `Summarize recorded sessions into the weekly and monthly effectiveness
views: average suppression frequency, the share of effective sessions,
total active suppression time, and the tremor frequency shift.

With --json the full report export (daily series, sessions, aggregates)
is printed as JSON instead, suitable for sharing with a clinician.`,
	RunE: runReport,
}

var reportJSON bool

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the full report export as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
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

	sessions := store.Sessions()

	if reportJSON {
		daily := store.DailySeries()
		if len(daily) == 0 {
			daily = report.DailySeries(sessions)
		}
		export := report.BuildExport(daily, store.Samples(), sessions)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	}

	now := time.Now()
	weekly := report.Weekly(sessions, now)
	monthly := report.Monthly(sessions, now)

	heading := color.New(color.Bold)

	heading.Println("This week")
	fmt.Printf("  Avg suppression frequency: %.2f Hz\n", weekly.AvgSuppressionFrequencyHz)
	fmt.Printf("  Effective sessions (>%.0f%% reduction): %s\n",
		report.EffectiveReductionThreshold, weekly.EffectiveSessions)

	heading.Println("\nThis month")
	fmt.Printf("  Active suppression time: %.1f h\n", monthly.ActiveSuppressionTimeHours)
	fmt.Printf("  Tremor shift: %.2f Hz -> %.2f Hz\n",
		monthly.TremorShiftFromHz, monthly.TremorShiftToHz)

	return nil
}

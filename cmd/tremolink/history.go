package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/report"
	"github.com/srg/tremolink/internal/session"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded suppression sessions",
	Long: `List recorded suppression sessions, newest first.

By default the local cache is read. With --remote the configured remote
store is queried instead; the local cache is left untouched.`,
	RunE: runHistory,
}

var (
	historyRemote bool
	historyFormat string
)

func init() {
	historyCmd.Flags().BoolVar(&historyRemote, "remote", false, "Read from the remote store instead of the local cache")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format (table, json)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "table" && historyFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", historyFormat)
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

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.WithField("error", closeErr).Warn("Failed to close history store")
		}
	}()

	var records []session.Record
	if historyRemote {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		docs, err := store.FetchRemote(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch remote history: %w", err)
		}
		records = make([]session.Record, 0, len(docs))
		for _, doc := range docs {
			records = append(records, session.Record{
				Date:             doc.Timestamp,
				Mode:             doc.Mode,
				DurationSeconds:  doc.Duration,
				Before:           doc.Before,
				After:            doc.After,
				ReductionPercent: doc.Reduction,
				AvgFrequencyHz:   doc.AvgFrequency,
			})
		}
	} else {
		records = store.Sessions()
		// The log is append-ordered; display newest first.
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Date.After(records[j].Date)
		})
	}

	if historyFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No sessions recorded yet")
		return nil
	}

	good := color.New(color.FgGreen)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMODE\tDURATION\tBEFORE\tAFTER\tREDUCTION\tAVG FREQ")
	for _, rec := range records {
		reduction := fmt.Sprintf("%.1f%%", rec.ReductionPercent)
		if rec.ReductionPercent > report.EffectiveReductionThreshold {
			reduction = good.Sprint(reduction)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fHz\t%.2fHz\t%s\t%.2fHz\n",
			rec.Date.Format(time.DateTime),
			rec.Mode,
			(time.Duration(rec.DurationSeconds) * time.Second).String(),
			rec.Before,
			rec.After,
			reduction,
			rec.AvgFrequencyHz,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d session(s)\n", len(records))
	return nil
}

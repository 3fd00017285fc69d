package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/tremolink/internal/band"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE peripherals",
	Long: `Scan for Bluetooth Low Energy peripherals in the vicinity and list them.

The band is highlighted when its advertised name matches the configured
device name. Use this to verify the band is powered on and in range before
connecting.`,
	RunE: runScan,
}

var scanDuration time.Duration

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("duration", scanDuration).Info("Scanning for peripherals")

	mgr := band.NewManager(&cfg.Band, logger)
	peers, err := mgr.Survey(ctx, scanDuration)
	if err != nil {
		return err
	}

	// Strongest signal first
	sort.Slice(peers, func(i, j int) bool { return peers[i].RSSI > peers[j].RSSI })

	highlight := color.New(color.FgGreen, color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	for _, p := range peers {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		if p.Name == cfg.Band.Name {
			name = highlight.Sprint(name)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", name, p.Addr, p.RSSI)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d peripheral(s) found\n", len(peers))
	return nil
}

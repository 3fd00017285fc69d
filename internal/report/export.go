package report

import (
	"github.com/srg/tremolink/internal/history"
	"github.com/srg/tremolink/internal/session"
)

// Export is the read-only aggregate handed to the external report renderer.
// No schema requirements are imposed on the rendered output.
type Export struct {
	DailySeries         []history.DailyPoint  `json:"dailySeries"`
	RawFrequencySamples []history.SamplePoint `json:"rawFrequencySamples"`
	Sessions            []session.Record      `json:"sessionList"`

	// Pre-computed safe averages for the renderer's summary header.
	AvgDailyValueHz       float64 `json:"avgDailyValueHz"`
	AvgSessionFrequencyHz float64 `json:"avgSessionFrequencyHz"`
	TotalSessions         int     `json:"totalSessions"`
}

// BuildExport assembles the report aggregate. Averages are zero when their
// inputs are empty.
func BuildExport(daily []history.DailyPoint, samples []history.SamplePoint, sessions []session.Record) Export {
	avgDaily := 0.0
	if len(daily) > 0 {
		sum := 0.0
		for _, p := range daily {
			sum += p.Value
		}
		avgDaily = sum / float64(len(daily))
	}

	avgSession := 0.0
	if len(sessions) > 0 {
		sum := 0.0
		for _, s := range sessions {
			sum += s.AvgFrequencyHz
		}
		avgSession = sum / float64(len(sessions))
	}

	return Export{
		DailySeries:           daily,
		RawFrequencySamples:   samples,
		Sessions:              sessions,
		AvgDailyValueHz:       avgDaily,
		AvgSessionFrequencyHz: avgSession,
		TotalSessions:         len(sessions),
	}
}

package report_test

import (
	"testing"
	"time"

	"github.com/srg/tremolink/internal/history"
	"github.com/srg/tremolink/internal/report"
	"github.com/srg/tremolink/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func rec(id string, date time.Time, reduction, avgHz float64) session.Record {
	return session.Record{
		ID:               id,
		Date:             date,
		Mode:             "ml",
		DurationSeconds:  600,
		Before:           9.0,
		After:            8.0,
		ReductionPercent: reduction,
		AvgFrequencyHz:   avgHz,
	}
}

func TestWeeklyEffectiveSessions(t *testing.T) {
	inWindow := now.AddDate(0, 0, -2)
	sessions := []session.Record{
		rec("a", inWindow, 10, 5.0),
		rec("b", inWindow, 35, 5.0),
		rec("c", inWindow, 40, 5.0),
		rec("d", inWindow, 20, 5.0),
	}

	summary := report.Weekly(sessions, now)
	assert.Equal(t, "2/4", summary.EffectiveSessions)
	assert.Equal(t, 5.0, summary.AvgSuppressionFrequencyHz)
}

func TestWeeklyExcludesOldSessions(t *testing.T) {
	sessions := []session.Record{
		rec("old", now.AddDate(0, 0, -10), 50, 9.0),
		rec("new", now.AddDate(0, 0, -1), 50, 5.0),
	}

	summary := report.Weekly(sessions, now)
	assert.Equal(t, "1/1", summary.EffectiveSessions)
	assert.Equal(t, 5.0, summary.AvgSuppressionFrequencyHz)
}

func TestWeeklyEmptyWindow(t *testing.T) {
	summary := report.Weekly(nil, now)
	assert.Equal(t, "0/0", summary.EffectiveSessions)
	assert.Equal(t, 0.0, summary.AvgSuppressionFrequencyHz)
}

func TestMonthlySummary(t *testing.T) {
	inWindow := now.AddDate(0, 0, -15)
	a := rec("a", inWindow, 10, 5.0)
	a.DurationSeconds = 3600
	a.Before, a.After = 9.4, 8.5
	b := rec("b", inWindow, 10, 5.0)
	b.DurationSeconds = 7200
	b.Before, b.After = 8.8, 8.1

	summary := report.Monthly([]session.Record{a, b}, now)
	assert.InDelta(t, 3.0, summary.ActiveSuppressionTimeHours, 1e-9)
	assert.Equal(t, 9.4, summary.TremorShiftFromHz)
	assert.Equal(t, 8.1, summary.TremorShiftToHz)
}

func TestMonthlyEmptyWindow(t *testing.T) {
	summary := report.Monthly(nil, now)
	assert.Equal(t, 0.0, summary.ActiveSuppressionTimeHours)
	assert.Equal(t, 0.0, summary.TremorShiftFromHz)
	assert.Equal(t, 0.0, summary.TremorShiftToHz)
}

func TestDailySeriesAveragesSameDateSessions(t *testing.T) {
	day := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) // a Monday
	sessions := []session.Record{
		rec("a", day, 10, 4.0),
	}

	points := report.DailySeries(sessions)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.Equal(t, "Mon", points[0].Label)
	assert.Equal(t, 4.0, points[0].Value)

	// A later same-date session updates the point to the mean of both, not a
	// second point.
	sessions = append(sessions, rec("b", day.Add(3*time.Hour), 10, 6.0))
	points = report.DailySeries(sessions)
	require.Len(t, points, 1)
	assert.Equal(t, 5.0, points[0].Value)
}

func TestDailySeriesKeepsLogOrder(t *testing.T) {
	mon := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)
	sessions := []session.Record{
		rec("a", tue, 10, 5.0),
		rec("b", mon, 10, 4.0),
		rec("c", tue, 10, 7.0),
	}

	points := report.DailySeries(sessions)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-02", points[0].Date)
	assert.Equal(t, 6.0, points[0].Value)
	assert.Equal(t, "2024-01-01", points[1].Date)
}

func TestBuildExportSafeAverages(t *testing.T) {
	empty := report.BuildExport(nil, nil, nil)
	assert.Equal(t, 0.0, empty.AvgDailyValueHz)
	assert.Equal(t, 0.0, empty.AvgSessionFrequencyHz)
	assert.Equal(t, 0, empty.TotalSessions)

	daily := []history.DailyPoint{
		{Date: "2024-01-01", Label: "Mon", Value: 4.0},
		{Date: "2024-01-02", Label: "Tue", Value: 6.0},
	}
	sessions := []session.Record{
		rec("a", now, 10, 5.0),
		rec("b", now, 10, 7.0),
	}

	samples := []history.SamplePoint{{Value: 5.5, Timestamp: now}}
	export := report.BuildExport(daily, samples, sessions)
	assert.Equal(t, 5.0, export.AvgDailyValueHz)
	assert.Equal(t, 6.0, export.AvgSessionFrequencyHz)
	assert.Equal(t, 2, export.TotalSessions)
	assert.Equal(t, samples, export.RawFrequencySamples)
}

func TestSampleBufferOverwritesOldest(t *testing.T) {
	buf := report.NewSampleBuffer(4)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		buf.Add(history.SamplePoint{Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	got := buf.Snapshot()
	require.NotEmpty(t, got)
	// The newest sample always survives; the oldest were overwritten.
	assert.Equal(t, 5.0, got[len(got)-1].Value)
	assert.Less(t, len(got), 6)

	// Snapshot is non-destructive.
	again := buf.Snapshot()
	assert.Equal(t, got, again)
}

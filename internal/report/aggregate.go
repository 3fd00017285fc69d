// Package report derives read-only statistics from the session log: weekly
// and monthly summaries, the daily chart series, and the aggregate handed to
// the external report renderer. Everything here is a pure projection,
// recomputed in full from the log on every change.
package report

import (
	"fmt"
	"time"

	"github.com/srg/tremolink/internal/history"
	"github.com/srg/tremolink/internal/session"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EffectiveReductionThreshold is the minimum tremor reduction (percent) for a
// session to count as effective in the weekly summary.
const EffectiveReductionThreshold = 30.0

// WeeklySummary covers sessions from the last 7 days.
type WeeklySummary struct {
	AvgSuppressionFrequencyHz float64
	// EffectiveSessions is rendered as "effective/total", e.g. "2/4".
	EffectiveSessions string
}

// MonthlySummary covers sessions from the last calendar month.
type MonthlySummary struct {
	ActiveSuppressionTimeHours float64
	TremorShiftFromHz          float64 // max session-start amplitude in the window
	TremorShiftToHz            float64 // min session-end amplitude in the window
}

// Weekly computes the weekly summary over sessions dated within the 7 days
// before now.
func Weekly(sessions []session.Record, now time.Time) WeeklySummary {
	cutoff := now.AddDate(0, 0, -7)

	var sum float64
	var total, effective int
	for _, s := range sessions {
		if s.Date.Before(cutoff) {
			continue
		}
		total++
		sum += s.AvgFrequencyHz
		if s.ReductionPercent > EffectiveReductionThreshold {
			effective++
		}
	}

	avg := 0.0
	if total > 0 {
		avg = sum / float64(total)
	}

	return WeeklySummary{
		AvgSuppressionFrequencyHz: avg,
		EffectiveSessions:         fmt.Sprintf("%d/%d", effective, total),
	}
}

// Monthly computes the monthly summary over sessions dated within the month
// before now.
func Monthly(sessions []session.Record, now time.Time) MonthlySummary {
	cutoff := now.AddDate(0, -1, 0)

	var totalSeconds int
	var from, to float64
	first := true
	for _, s := range sessions {
		if s.Date.Before(cutoff) {
			continue
		}
		totalSeconds += s.DurationSeconds
		if first {
			from, to = s.Before, s.After
			first = false
			continue
		}
		if s.Before > from {
			from = s.Before
		}
		if s.After < to {
			to = s.After
		}
	}

	return MonthlySummary{
		ActiveSuppressionTimeHours: float64(totalSeconds) / 3600,
		TremorShiftFromHz:          from,
		TremorShiftToHz:            to,
	}
}

// DailySeries rebuilds the daily chart from scratch: one point per distinct
// calendar date in the log, valued at the mean avgFrequency of that date's
// sessions. A full rebuild (never an incremental patch) keeps the series
// consistent after out-of-order writes. Dates appear in first-seen log order.
func DailySeries(sessions []session.Record) []history.DailyPoint {
	type bucket struct {
		sum   float64
		count int
		day   time.Time
	}

	buckets := orderedmap.New[string, *bucket]()
	for _, s := range sessions {
		key := s.Date.Format("2006-01-02")
		b, ok := buckets.Get(key)
		if !ok {
			b = &bucket{day: s.Date}
			buckets.Set(key, b)
		}
		b.sum += s.AvgFrequencyHz
		b.count++
	}

	points := make([]history.DailyPoint, 0, buckets.Len())
	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		b := pair.Value
		points = append(points, history.DailyPoint{
			Date:  pair.Key,
			Label: b.day.Weekday().String()[:3],
			Value: b.sum / float64(b.count),
		})
	}

	return points
}

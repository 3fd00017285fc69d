// Package session reconstructs tremor-suppression sessions from the
// asynchronous telemetry stream. A session opens on a start notice,
// accumulates frequency samples, and closes on a stop notice (or, best
// effort, on a coarse inactive announcement).
package session

import "time"

// Record is one completed suppression session. Records are immutable once
// emitted: the history log appends them and never mutates or deletes them.
type Record struct {
	ID               string    `json:"id"`
	Date             time.Time `json:"date"`
	Mode             string    `json:"mode"`
	DurationSeconds  int       `json:"duration"`
	Before           float64   `json:"before"`
	After            float64   `json:"after"`
	ReductionPercent float64   `json:"reduction"`
	AvgFrequencyHz   float64   `json:"avgFrequency"`
}

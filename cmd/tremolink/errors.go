package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/tremolink/internal/band"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the link to the band dropped mid-operation.
	// This is distinct from band.ErrNotConnected, which indicates an attempt
	// to use a link that was never established or was already torn down.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError rewrites known failure modes into actionable messages and
// passes everything else through unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, band.ErrNoPeerFound):
		return "band not found - make sure it is powered on and in range, then try again"
	case errors.Is(err, band.ErrNotConnected):
		return "not connected to the band"
	case errors.Is(err, band.ErrAlreadyConnected):
		return "a connection is already active"
	case errors.Is(err, band.ErrWriteInFlight):
		return "a command is still being delivered - wait a moment and retry"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the band was lost"
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("operation timed out: %s", err)
	default:
		return err.Error()
	}
}

package band

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/srg/tremolink/internal/wire"
)

// CommandWriter sends an encoded command over the live link.
type CommandWriter interface {
	Write(cmd wire.Command) error
}

// Dispatcher is the user-facing command surface. User input is sanitized
// here: intensity is clamped into range, pattern and level are validated,
// so malformed requests never reach the wire codec.
type Dispatcher struct {
	writer CommandWriter
	log    *logrus.Logger
}

// NewDispatcher wraps a writer, normally the *Manager.
func NewDispatcher(writer CommandWriter, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{writer: writer, log: log}
}

// StartAutomatic puts the band into sensor-driven suppression.
func (d *Dispatcher) StartAutomatic() error {
	d.log.Info("Starting automatic suppression")
	return d.writer.Write(wire.StartAutomatic{})
}

// StopAutomatic halts sensor-driven suppression.
func (d *Dispatcher) StopAutomatic() error {
	d.log.Info("Stopping automatic suppression")
	return d.writer.Write(wire.StopAutomatic{})
}

// SetIntensity drives a fixed manual intensity. Out of range values are
// clamped into 0..100 rather than rejected, matching what sliders and
// repeated +/- key presses produce. The applied level is returned so
// callers report what the band actually received.
func (d *Dispatcher) SetIntensity(level int) (int, error) {
	clamped := level
	if clamped < 0 {
		clamped = 0
	}
	if clamped > wire.MaxIntensity {
		clamped = wire.MaxIntensity
	}
	if clamped != level {
		d.log.WithFields(logrus.Fields{
			"requested": level,
			"clamped":   clamped,
		}).Warn("Intensity out of range, clamped")
	}
	d.log.WithField("intensity", clamped).Info("Setting manual intensity")
	return clamped, d.writer.Write(wire.SetManualIntensity{Level: clamped})
}

// SetPattern selects a preprogrammed pattern at a strength level. Unlike
// intensity there is no meaningful clamp for a pattern id, so range
// violations are rejected.
func (d *Dispatcher) SetPattern(pattern, level int) error {
	if pattern < wire.MinPattern || pattern > wire.MaxPattern {
		return fmt.Errorf("pattern %d out of range %d..%d", pattern, wire.MinPattern, wire.MaxPattern)
	}
	if level < wire.MinLevel || level > wire.MaxLevel {
		return fmt.Errorf("pattern level %d out of range %d..%d", level, wire.MinLevel, wire.MaxLevel)
	}
	d.log.WithFields(logrus.Fields{
		"pattern": pattern,
		"level":   level,
	}).Info("Setting stimulation pattern")
	return d.writer.Write(wire.SetPattern{Pattern: pattern, Level: level})
}

// StopAll halts whatever mode is running.
func (d *Dispatcher) StopAll() error {
	d.log.Info("Stopping all suppression")
	return d.writer.Write(wire.StopAll{})
}

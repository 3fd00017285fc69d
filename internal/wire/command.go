// Package wire implements the application-level message protocol spoken over
// the band's control service: command encoding for the writable characteristic
// and telemetry decoding for the notifiable one.
//
// The codec is pure and stateless. Commands serialize to a compact JSON object
// and are base64-encoded for the binary-safe write path; telemetry payloads
// are either base64-wrapped JSON or the legacy "ML:"-prefixed coarse notice.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Modes understood by the band's control characteristic.
const (
	ModeML      = "ml"
	ModeManual  = "manual"
	ModePattern = "pattern"
)

// States for mode "ml".
const (
	StateStart = "start"
	StateStop  = "stop"
)

// Intensity and pattern bounds enforced at encode time. Range violations are
// rejected before transmission; clamping is the dispatcher's job, not ours.
const (
	MaxIntensity = 100
	MinPattern   = 1
	MaxPattern   = 4
	MinLevel     = 1
	MaxLevel     = 5
)

// Command is a control instruction for the band. Commands are fire-and-forget:
// the only acknowledgement is the transport-level write confirmation.
type Command interface {
	payload() (commandPayload, error)
}

// StartAutomatic starts sensor-driven suppression.
type StartAutomatic struct{}

// StopAutomatic stops sensor-driven suppression.
type StopAutomatic struct{}

// SetManualIntensity sets a fixed suppression intensity, 0..100.
type SetManualIntensity struct {
	Level int
}

// SetPattern selects one of the preprogrammed stimulation patterns (1..4)
// at a strength level (1..5).
type SetPattern struct {
	Pattern int
	Level   int
}

// StopAll halts every suppression mode. It is encoded as a bare stop with no
// mode field, which the firmware treats as "stop whatever is running".
type StopAll struct{}

// commandPayload is the on-wire JSON shape shared by all command variants.
type commandPayload struct {
	Mode      string `json:"mode,omitempty"`
	State     string `json:"state,omitempty"`
	Intensity *int   `json:"intensity,omitempty"`
	Pattern   *int   `json:"pattern,omitempty"`
	Level     *int   `json:"level,omitempty"`
}

func (StartAutomatic) payload() (commandPayload, error) {
	return commandPayload{Mode: ModeML, State: StateStart}, nil
}

func (StopAutomatic) payload() (commandPayload, error) {
	return commandPayload{Mode: ModeML, State: StateStop}, nil
}

func (c SetManualIntensity) payload() (commandPayload, error) {
	if c.Level < 0 || c.Level > MaxIntensity {
		return commandPayload{}, fmt.Errorf("intensity %d out of range 0..%d", c.Level, MaxIntensity)
	}
	level := c.Level
	return commandPayload{Mode: ModeManual, Intensity: &level}, nil
}

func (c SetPattern) payload() (commandPayload, error) {
	if c.Pattern < MinPattern || c.Pattern > MaxPattern {
		return commandPayload{}, fmt.Errorf("pattern %d out of range %d..%d", c.Pattern, MinPattern, MaxPattern)
	}
	if c.Level < MinLevel || c.Level > MaxLevel {
		return commandPayload{}, fmt.Errorf("pattern level %d out of range %d..%d", c.Level, MinLevel, MaxLevel)
	}
	pattern, level := c.Pattern, c.Level
	return commandPayload{Mode: ModePattern, Pattern: &pattern, Level: &level}, nil
}

func (StopAll) payload() (commandPayload, error) {
	return commandPayload{State: StateStop}, nil
}

// EncodeCommand serializes a command into the transport representation written
// to the control characteristic. The result round-trips losslessly through
// DecodeCommand.
func EncodeCommand(cmd Command) ([]byte, error) {
	p, err := cmd.payload()
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)
	return encoded, nil
}

// DecodedCommand is the structured view of a command payload recovered from
// its wire bytes. Optional fields are nil when absent.
type DecodedCommand struct {
	Mode      string
	State     string
	Intensity *int
	Pattern   *int
	Level     *int
}

// DecodeCommand reverses EncodeCommand through the structured-data path.
func DecodeCommand(data []byte) (DecodedCommand, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return DecodedCommand{}, fmt.Errorf("failed to decode command transport encoding: %w", err)
	}

	var p commandPayload
	if err := json.Unmarshal(raw[:n], &p); err != nil {
		return DecodedCommand{}, fmt.Errorf("failed to parse command payload: %w", err)
	}

	return DecodedCommand{
		Mode:      p.Mode,
		State:     p.State,
		Intensity: p.Intensity,
		Pattern:   p.Pattern,
		Level:     p.Level,
	}, nil
}

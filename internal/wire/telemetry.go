package wire

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// TelemetryEvent is a notification decoded from the band's telemetry
// characteristic. Exactly one concrete variant is produced per payload.
type TelemetryEvent interface {
	isTelemetryEvent()
}

// SessionStarted announces the beginning of a suppression session.
type SessionStarted struct {
	Mode     string
	Baseline float64 // tremor amplitude at session start
}

// FrequencySample carries one suppression frequency reading. The timestamp is
// assigned on receipt; the wire payload does not carry one.
type FrequencySample struct {
	Hz float64
	At time.Time
}

// SessionStopped closes a session. Reduction is nil when the band did not
// report one; the receiver derives it from the amplitudes instead.
type SessionStopped struct {
	DurationSeconds int
	After           float64
	Reduction       *float64
}

// ModeAnnouncement is the legacy coarse state notice ("ML:1"/"ML:0"). It only
// conveys on/off and is used to resynchronize when structured decoding is
// unavailable.
type ModeAnnouncement struct {
	Active bool
}

func (SessionStarted) isTelemetryEvent()   {}
func (FrequencySample) isTelemetryEvent()  {}
func (SessionStopped) isTelemetryEvent()   {}
func (ModeAnnouncement) isTelemetryEvent() {}

const coarseNoticePrefix = "ML:"

// telemetryPayload is the superset of fields a structured notification may
// carry. Which variant it means is decided once here, by field presence,
// never inferred again downstream.
type telemetryPayload struct {
	Mode      *string  `json:"mode"`
	Baseline  *float64 `json:"baseline"`
	Hz        *float64 `json:"hz"`
	Duration  *int     `json:"duration"`
	After     *float64 `json:"after"`
	Reduction *float64 `json:"reduction"`
	Active    *bool    `json:"active"`
}

// Decoder turns raw notification payloads into telemetry events. Malformed
// payloads are discarded with a logged warning, never surfaced to the caller.
type Decoder struct {
	log *logrus.Logger
	now func() time.Time
}

// NewDecoder creates a telemetry decoder. A nil logger gets a default one.
func NewDecoder(log *logrus.Logger) *Decoder {
	if log == nil {
		log = logrus.New()
	}
	return &Decoder{log: log, now: time.Now}
}

// Decode parses one notification payload. The second result is false when the
// payload was discarded.
func (d *Decoder) Decode(raw []byte) (TelemetryEvent, bool) {
	text := decodeTransportText(raw)

	if strings.HasPrefix(text, "{") {
		return d.decodeStructured(text)
	}
	return d.decodeCoarse(text)
}

// decodeStructured parses a JSON payload and resolves its variant by which
// fields are present.
func (d *Decoder) decodeStructured(text string) (TelemetryEvent, bool) {
	var p telemetryPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		d.log.WithFields(logrus.Fields{
			"payload": text,
			"error":   err,
		}).Warn("Discarding malformed telemetry payload")
		return nil, false
	}

	switch {
	case p.Active != nil:
		return ModeAnnouncement{Active: *p.Active}, true
	case p.Hz != nil:
		return FrequencySample{Hz: *p.Hz, At: d.now()}, true
	case p.Duration != nil:
		var after float64
		if p.After != nil {
			after = *p.After
		}
		return SessionStopped{
			DurationSeconds: *p.Duration,
			After:           after,
			Reduction:       p.Reduction,
		}, true
	case p.Mode != nil && p.Baseline != nil:
		return SessionStarted{Mode: *p.Mode, Baseline: *p.Baseline}, true
	default:
		d.log.WithField("payload", text).Warn("Discarding telemetry payload with no recognized fields")
		return nil, false
	}
}

// decodeCoarse handles the legacy prefix+suffix convention: "ML:1" active,
// "ML:0" inactive.
func (d *Decoder) decodeCoarse(text string) (TelemetryEvent, bool) {
	if !strings.HasPrefix(text, coarseNoticePrefix) {
		d.log.WithField("payload", text).Warn("Discarding unrecognized telemetry payload")
		return nil, false
	}

	switch {
	case strings.HasSuffix(text, "1"):
		return ModeAnnouncement{Active: true}, true
	case strings.HasSuffix(text, "0"):
		return ModeAnnouncement{Active: false}, true
	default:
		d.log.WithField("payload", text).Warn("Discarding coarse state notice with unknown suffix")
		return nil, false
	}
}

// decodeTransportText undoes the binary-safe transport encoding. Payloads
// from legacy firmware arrive as plain text, so a failed base64 decode falls
// back to interpreting the bytes directly.
func decodeTransportText(raw []byte) string {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(decoded, raw)
	if err == nil && utf8.Valid(decoded[:n]) {
		return string(decoded[:n])
	}
	return string(raw)
}

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/tremolink/internal/ringchan"
	"github.com/srg/tremolink/internal/wire"
)

// DefaultLiveWindow is how many recent frequency samples the live view
// retains for real-time display. Older samples are dropped, not kept.
const DefaultLiveWindow = 20

type state int

const (
	stateIdle state = iota
	stateInSession
)

// Sink receives each completed session record exactly once.
type Sink func(Record)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLiveWindow overrides the live sample window size.
func WithLiveWindow(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.liveWindow = n
		}
	}
}

// WithClock overrides the time source. Tests use this to pin session dates.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Reconciler) { r.newID = newID }
}

// accumulator is the mutable in-progress session owned by the reconciler.
type accumulator struct {
	id       string
	start    time.Time
	mode     string
	baseline float64
	freqs    []float64
}

// Reconciler is the two-state machine that assembles completed session
// records from decoded telemetry events.
//
// Events are processed strictly in arrival order. All methods must be called
// from a single goroutine (the app's single cooperative event loop); the
// reconciler does no locking of its own.
type Reconciler struct {
	log        *logrus.Logger
	sink       Sink
	now        func() time.Time
	newID      func() string
	liveWindow int

	st   state
	acc  *accumulator
	live *ringchan.RingChannel[float64]
}

// NewReconciler creates a reconciler that emits completed records to sink.
func NewReconciler(log *logrus.Logger, sink Sink, opts ...Option) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	if sink == nil {
		sink = func(Record) {}
	}
	r := &Reconciler{
		log:        log,
		sink:       sink,
		now:        time.Now,
		newID:      uuid.NewString,
		liveWindow: DefaultLiveWindow,
		st:         stateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.live = ringchan.New[float64](r.liveWindow)
	return r
}

// Live returns the bounded live sample feed for real-time display. The feed
// holds at most the window size of recent samples; older ones are dropped.
func (r *Reconciler) Live() <-chan float64 {
	return r.live.C()
}

// InSession reports whether a session is currently open.
func (r *Reconciler) InSession() bool {
	return r.st == stateInSession
}

// Handle processes one telemetry event.
//
// Samples and stops with no open session are noise, discarded without an
// error. A second start while in session replaces the accumulator; the
// interrupted session is never written to history.
func (r *Reconciler) Handle(ev wire.TelemetryEvent) {
	switch e := ev.(type) {
	case wire.SessionStarted:
		r.handleStarted(e)
	case wire.FrequencySample:
		r.handleSample(e)
	case wire.SessionStopped:
		r.handleStopped(e)
	case wire.ModeAnnouncement:
		r.handleAnnouncement(e)
	}
}

func (r *Reconciler) handleStarted(e wire.SessionStarted) {
	if r.st == stateInSession {
		r.log.WithFields(logrus.Fields{
			"session_id": r.acc.id,
			"samples":    len(r.acc.freqs),
		}).Info("New session start while in session, discarding in-progress accumulator")
	}

	r.acc = &accumulator{
		id:       r.newID(),
		start:    r.now(),
		mode:     e.Mode,
		baseline: e.Baseline,
	}
	r.st = stateInSession
	r.live.Drain()

	r.log.WithFields(logrus.Fields{
		"session_id": r.acc.id,
		"mode":       e.Mode,
		"baseline":   e.Baseline,
	}).Info("Session started")
}

func (r *Reconciler) handleSample(e wire.FrequencySample) {
	if r.st != stateInSession {
		// Noise, not an error.
		r.log.WithField("hz", e.Hz).Debug("Frequency sample with no open session, discarding")
		return
	}

	r.acc.freqs = append(r.acc.freqs, e.Hz)
	r.live.ForceSend(e.Hz)
}

func (r *Reconciler) handleStopped(e wire.SessionStopped) {
	if r.st != stateInSession {
		r.log.Debug("Session stop with no open session, discarding")
		return
	}

	rec := r.complete(e.DurationSeconds, e.After, e.Reduction)
	r.emit(rec)
}

// handleAnnouncement closes an open session on an inactive coarse notice.
// This is the sole close signal when structured stop decoding is unavailable,
// so the record is best effort: zero after/reduction, elapsed wall time as
// the duration.
func (r *Reconciler) handleAnnouncement(e wire.ModeAnnouncement) {
	if e.Active || r.st != stateInSession {
		return
	}

	elapsed := int(r.now().Sub(r.acc.start) / time.Second)
	r.log.WithField("session_id", r.acc.id).Info("Closing session from coarse inactive notice")

	zero := 0.0
	r.acc.baseline = 0
	rec := r.complete(elapsed, 0, &zero)
	r.emit(rec)
}

// Abort discards any in-progress accumulator without persisting it, e.g.
// when the connection drops mid-session.
func (r *Reconciler) Abort() {
	if r.st != stateInSession {
		return
	}

	r.log.WithFields(logrus.Fields{
		"session_id": r.acc.id,
		"samples":    len(r.acc.freqs),
		"elapsed":    r.now().Sub(r.acc.start).Round(time.Second),
	}).Info("Discarding in-progress session")

	r.clear()
}

// complete computes the immutable record from the accumulator.
func (r *Reconciler) complete(durationSeconds int, after float64, reduction *float64) Record {
	avg := 0.0
	if n := len(r.acc.freqs); n > 0 {
		sum := 0.0
		for _, f := range r.acc.freqs {
			sum += f
		}
		avg = sum / float64(n)
	}

	red := 0.0
	switch {
	case reduction != nil:
		red = *reduction
	case r.acc.baseline > 0:
		red = (r.acc.baseline - after) / r.acc.baseline * 100
	}

	return Record{
		ID:               r.acc.id,
		Date:             r.acc.start,
		Mode:             r.acc.mode,
		DurationSeconds:  durationSeconds,
		Before:           r.acc.baseline,
		After:            after,
		ReductionPercent: red,
		AvgFrequencyHz:   avg,
	}
}

func (r *Reconciler) emit(rec Record) {
	r.log.WithFields(logrus.Fields{
		"session_id": rec.ID,
		"duration_s": rec.DurationSeconds,
		"avg_hz":     rec.AvgFrequencyHz,
		"reduction":  rec.ReductionPercent,
	}).Info("Session completed")

	r.clear()
	r.sink(rec)
}

func (r *Reconciler) clear() {
	r.acc = nil
	r.st = stateIdle
	r.live.Drain()
}

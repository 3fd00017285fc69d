package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/tremolink/internal/groutine"
	"github.com/srg/tremolink/internal/session"
)

// DailyPoint is one chart point: the mean suppression frequency of all
// sessions completed on one calendar day. The series is derived, rebuilt in
// full from the session log, and cached here only so offline reads are
// instant.
type DailyPoint struct {
	Date  string  `json:"date"`  // YYYY-MM-DD
	Label string  `json:"label"` // weekday abbreviation
	Value float64 `json:"value"`
}

// SamplePoint is one raw suppression frequency reading with its receiver
// timestamp, retained for the report export.
type SamplePoint struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the append-only session log. Local cache writes happen in the
// caller's goroutine; the remote mirror is asynchronous and best effort, so
// a remote outage never blocks or rolls back a local append. The in-memory
// log is insertion-ordered, oldest first.
type Store struct {
	log    *logrus.Logger
	cache  *Cache
	remote RemoteStore
	userID string

	mu       sync.Mutex
	sessions []session.Record
	daily    []DailyPoint
	samples  []SamplePoint

	mirror sync.WaitGroup
}

// NewStore wires the local cache with an optional remote mirror. An empty
// userID or nil remote disables mirroring.
func NewStore(cache *Cache, remote RemoteStore, userID string, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		log:    log,
		cache:  cache,
		remote: remote,
		userID: userID,
	}
}

// LoadAll populates the in-memory state from the local cache. This is the
// fast path run at startup; remote history retrieval is a separate, explicit
// operation (FetchRemote) and is never merged automatically.
func (s *Store) LoadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.cache.Get(keySessionLog)
	if err != nil {
		return err
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &s.sessions); err != nil {
			return err
		}
	}

	raw, found, err = s.cache.Get(keyDailySeries)
	if err != nil {
		return err
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &s.daily); err != nil {
			return err
		}
	}

	raw, found, err = s.cache.Get(keySampleLog)
	if err != nil {
		return err
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &s.samples); err != nil {
			return err
		}
	}

	s.log.WithField("sessions", len(s.sessions)).Debug("History loaded from local cache")
	return nil
}

// Append adds a completed session to the log, persists the log locally, and
// mirrors the session to the remote store in the background. Persistence
// failures are logged and otherwise ignored; the in-memory append always
// takes effect.
func (s *Store) Append(rec session.Record) {
	s.mu.Lock()
	s.sessions = append(s.sessions, rec)
	s.persistSessionsLocked()
	s.mu.Unlock()

	if s.remote == nil || s.userID == "" {
		return
	}

	doc := SessionDocument{
		Timestamp:    rec.Date,
		Mode:         rec.Mode,
		Duration:     rec.DurationSeconds,
		Before:       rec.Before,
		After:        rec.After,
		Reduction:    rec.ReductionPercent,
		AvgFrequency: rec.AvgFrequencyHz,
	}

	s.mirror.Add(1)
	groutine.Go(context.Background(), "history-mirror", func(ctx context.Context) {
		defer s.mirror.Done()

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := s.remote.Append(ctx, s.userID, doc); err != nil {
			// Eventual consistency: no retry, no rollback, no user alert.
			s.log.WithError(err).WithField("session_id", rec.ID).Warn("Remote history mirror failed")
		}
	})
}

// Sessions returns a copy of the log in insertion order, oldest first.
// Consumers needing reverse-chronological order sort at read time.
func (s *Store) Sessions() []session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]session.Record, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// SaveDailySeries replaces the cached daily chart series.
func (s *Store) SaveDailySeries(points []DailyPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.daily = points

	raw, err := json.Marshal(points)
	if err != nil {
		s.log.WithError(err).Warn("Failed to serialize daily series")
		return
	}
	if err := s.cache.Put(keyDailySeries, string(raw)); err != nil {
		s.log.WithError(err).Warn("Failed to cache daily series")
	}
}

// DailySeries returns the cached daily chart series.
func (s *Store) DailySeries() []DailyPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DailyPoint, len(s.daily))
	copy(out, s.daily)
	return out
}

// SaveSamples replaces the cached raw frequency samples.
func (s *Store) SaveSamples(points []SamplePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = points

	raw, err := json.Marshal(points)
	if err != nil {
		s.log.WithError(err).Warn("Failed to serialize frequency samples")
		return
	}
	if err := s.cache.Put(keySampleLog, string(raw)); err != nil {
		s.log.WithError(err).Warn("Failed to cache frequency samples")
	}
}

// Samples returns the cached raw frequency samples in arrival order.
func (s *Store) Samples() []SamplePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SamplePoint, len(s.samples))
	copy(out, s.samples)
	return out
}

// FetchRemote retrieves the user's full remote history, newest first. This
// is the explicit operation exposed to the reporting UI; it performs no
// merge with the local log.
func (s *Store) FetchRemote(ctx context.Context) ([]SessionDocument, error) {
	if s.remote == nil || s.userID == "" {
		return nil, nil
	}
	return s.remote.List(ctx, s.userID)
}

// Close waits for in-flight remote mirrors and releases the local cache.
func (s *Store) Close() error {
	s.mirror.Wait()
	return s.cache.Close()
}

// persistSessionsLocked writes the session log to the local cache. Callers
// must hold s.mu.
func (s *Store) persistSessionsLocked() {
	raw, err := json.Marshal(s.sessions)
	if err != nil {
		s.log.WithError(err).Warn("Failed to serialize session log")
		return
	}
	if err := s.cache.Put(keySessionLog, string(raw)); err != nil {
		s.log.WithError(err).Warn("Failed to cache session log")
	}
}

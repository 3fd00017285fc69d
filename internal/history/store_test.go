package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tremolink/internal/history"
	"github.com/srg/tremolink/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote records appended documents and can be told to fail.
type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string][]history.SessionDocument
	failAll bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string][]history.SessionDocument)}
}

func (f *fakeRemote) Append(_ context.Context, userID string, doc history.SessionDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("remote unavailable")
	}
	f.docs[userID] = append(f.docs[userID], doc)
	return nil
}

func (f *fakeRemote) List(_ context.Context, userID string) ([]history.SessionDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("remote unavailable")
	}
	out := make([]history.SessionDocument, len(f.docs[userID]))
	copy(out, f.docs[userID])
	// Newest first, per the store contract.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func openTestCache(t *testing.T) *history.Cache {
	t.Helper()
	cache, err := history.OpenCache(filepath.Join(t.TempDir(), "history.db"), quietLogger())
	require.NoError(t, err)
	return cache
}

func testRecord(id string, date time.Time) session.Record {
	return session.Record{
		ID:               id,
		Date:             date,
		Mode:             "ml",
		DurationSeconds:  120,
		Before:           9.4,
		After:            8.1,
		ReductionPercent: 13.8,
		AvgFrequencyHz:   5.2,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	defer cache.Close()

	_, found, err := cache.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Put("k", "v1"))
	require.NoError(t, cache.Put("k", "v2"))

	v, found, err := cache.Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)
}

func TestAppendPersistsLocallyAndSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	cache, err := history.OpenCache(path, quietLogger())
	require.NoError(t, err)

	store := history.NewStore(cache, nil, "", quietLogger())
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store.Append(testRecord("a", base))
	store.Append(testRecord("b", base.Add(time.Hour)))
	require.NoError(t, store.Close())

	// Reopen: loadAll reads the local cache fast path.
	cache, err = history.OpenCache(path, quietLogger())
	require.NoError(t, err)
	store = history.NewStore(cache, nil, "", quietLogger())
	defer store.Close()

	require.NoError(t, store.LoadAll())
	sessions := store.Sessions()
	require.Len(t, sessions, 2)

	// Insertion order, oldest first.
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestAppendMirrorsToRemote(t *testing.T) {
	cache := openTestCache(t)
	remote := newFakeRemote()

	store := history.NewStore(cache, remote, "user-1", quietLogger())
	rec := testRecord("a", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	store.Append(rec)
	require.NoError(t, store.Close()) // waits for the mirror goroutine

	docs, err := remote.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, rec.Date, docs[0].Timestamp)
	assert.Equal(t, rec.Mode, docs[0].Mode)
	assert.Equal(t, rec.DurationSeconds, docs[0].Duration)
	assert.Equal(t, rec.AvgFrequencyHz, docs[0].AvgFrequency)
}

func TestRemoteFailureDoesNotAffectLocalWrite(t *testing.T) {
	cache := openTestCache(t)
	remote := newFakeRemote()
	remote.failAll = true

	store := history.NewStore(cache, remote, "user-1", quietLogger())
	store.Append(testRecord("a", time.Now()))

	assert.Len(t, store.Sessions(), 1)
	require.NoError(t, store.Close())
}

func TestFetchRemoteNewestFirst(t *testing.T) {
	cache := openTestCache(t)
	remote := newFakeRemote()

	store := history.NewStore(cache, remote, "user-1", quietLogger())
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store.Append(testRecord("old", base))
	store.Append(testRecord("new", base.Add(24*time.Hour)))

	// Wait for mirrors before listing.
	require.NoError(t, store.Close())

	cache = openTestCache(t)
	store = history.NewStore(cache, remote, "user-1", quietLogger())
	defer store.Close()

	docs, err := store.FetchRemote(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0].Timestamp.After(docs[1].Timestamp))
}

func TestFetchRemoteWithoutRemoteConfigured(t *testing.T) {
	cache := openTestCache(t)
	store := history.NewStore(cache, nil, "", quietLogger())
	defer store.Close()

	docs, err := store.FetchRemote(context.Background())
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestDailySeriesPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	cache, err := history.OpenCache(path, quietLogger())
	require.NoError(t, err)
	store := history.NewStore(cache, nil, "", quietLogger())

	points := []history.DailyPoint{
		{Date: "2024-01-01", Label: "Mon", Value: 5.2},
		{Date: "2024-01-02", Label: "Tue", Value: 4.8},
	}
	store.SaveDailySeries(points)
	require.NoError(t, store.Close())

	cache, err = history.OpenCache(path, quietLogger())
	require.NoError(t, err)
	store = history.NewStore(cache, nil, "", quietLogger())
	defer store.Close()

	require.NoError(t, store.LoadAll())
	assert.Equal(t, points, store.DailySeries())
}

func TestSamplePersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	cache, err := history.OpenCache(path, quietLogger())
	require.NoError(t, err)
	store := history.NewStore(cache, nil, "", quietLogger())

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	samples := []history.SamplePoint{
		{Value: 5.2, Timestamp: base},
		{Value: 4.8, Timestamp: base.Add(time.Second)},
	}
	store.SaveSamples(samples)
	require.NoError(t, store.Close())

	cache, err = history.OpenCache(path, quietLogger())
	require.NoError(t, err)
	store = history.NewStore(cache, nil, "", quietLogger())
	defer store.Close()

	require.NoError(t, store.LoadAll())
	assert.Equal(t, samples, store.Samples())
}

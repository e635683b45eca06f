package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	saves    int
	archives int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Save(state SessionState) error {
	s.saves++
	return s.MemoryStore.Save(state)
}

func (s *countingStore) Archive(id string) error {
	s.archives++
	return s.MemoryStore.Archive(id)
}

type failingStore struct{ *MemoryStore }

func (s failingStore) Save(SessionState) error { return errors.New("disk full") }

// fakeClock advances only when told to.
type fakeClock struct{ now time.Time }

func (c *fakeClock) tick(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) fn() func() time.Time { return func() time.Time { return c.now } }

func TestObserveActivatesIdleSession(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
	tracker := NewTracker("s1", 30*time.Minute, newCountingStore(), WithClock(clock.fn()))

	assert.Equal(t, StateIdle, tracker.State())
	checkpointed, err := tracker.Observe(false)
	require.NoError(t, err)
	assert.False(t, checkpointed)
	assert.Equal(t, StateActive, tracker.State())
	assert.Equal(t, clock.now, tracker.Snapshot().StartTime)
	assert.Equal(t, 1, tracker.Snapshot().EventCount)
}

func TestIntervalCheckpointFiresOnceAtThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
	store := newCountingStore()
	tracker := NewTracker("s1", 30*time.Minute, store, WithClock(clock.fn()))

	_, err := tracker.Observe(false)
	require.NoError(t, err)
	clock.tick(10 * time.Minute)
	checkpointed, err := tracker.Observe(false)
	require.NoError(t, err)
	assert.False(t, checkpointed, "10 minutes elapsed, under the interval")

	clock.tick(21 * time.Minute) // 31 minutes since activation
	checkpointed, err = tracker.Observe(false)
	require.NoError(t, err)
	assert.True(t, checkpointed)
	assert.Equal(t, 1, store.saves)

	clock.tick(time.Minute)
	checkpointed, err = tracker.Observe(false)
	require.NoError(t, err)
	assert.False(t, checkpointed, "the interval restarts from the checkpoint")
	assert.Equal(t, 1, store.saves)
}

func TestHighRiskEventForcesCheckpoint(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
	store := newCountingStore()
	tracker := NewTracker("s1", 30*time.Minute, store, WithClock(clock.fn()))

	checkpointed, err := tracker.Observe(true)
	require.NoError(t, err)
	assert.True(t, checkpointed, "risk events checkpoint immediately")
	assert.Equal(t, 1, tracker.Snapshot().RiskCount)
	assert.Equal(t, 1, store.saves)
}

func TestRiskCountShrinksInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
	store := newCountingStore()
	tracker := NewTracker("s1", 30*time.Minute, store,
		WithClock(clock.fn()), WithRiskFactor(0.5))

	// Two risk events: effective interval becomes 30m / (1 + 0.5*2) = 15m.
	_, err := tracker.Observe(true)
	require.NoError(t, err)
	_, err = tracker.Observe(true)
	require.NoError(t, err)
	savesBefore := store.saves

	clock.tick(16 * time.Minute)
	checkpointed, err := tracker.Observe(false)
	require.NoError(t, err)
	assert.True(t, checkpointed, "16 minutes exceeds the shrunk 15-minute interval")
	assert.Equal(t, savesBefore+1, store.saves)
}

func TestPersistFailureIsAdvisory(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
	tracker := NewTracker("s1", 30*time.Minute, failingStore{NewMemoryStore()}, WithClock(clock.fn()))

	checkpointed, err := tracker.Observe(true)
	assert.True(t, checkpointed)
	assert.Error(t, err, "the failure is reported")
	assert.Equal(t, StateActive, tracker.State(), "and the session keeps running")

	_, err = tracker.Observe(false)
	assert.NoError(t, err, "subsequent events proceed normally")
}

func TestExplicitCheckpoint(t *testing.T) {
	store := newCountingStore()
	tracker := NewTracker("s1", 30*time.Minute, store)

	require.NoError(t, tracker.Checkpoint(), "idle session checkpoints to nothing")
	assert.Equal(t, 0, store.saves)

	_, err := tracker.Observe(false)
	require.NoError(t, err)
	require.NoError(t, tracker.Checkpoint())
	assert.Equal(t, 1, store.saves)
}

func TestStopTerminatesAndArchives(t *testing.T) {
	store := newCountingStore()
	tracker := NewTracker("s1", 30*time.Minute, store)

	_, err := tracker.Observe(false)
	require.NoError(t, err)
	require.NoError(t, tracker.Stop())
	assert.Equal(t, StateTerminated, tracker.State())
	assert.Equal(t, 1, store.archives)

	checkpointed, err := tracker.Observe(false)
	assert.NoError(t, err)
	assert.False(t, checkpointed, "a terminated session ignores events")
	require.NoError(t, tracker.Stop(), "stopping twice is a no-op")
	assert.Equal(t, 1, store.archives)
}

func TestTrackerResumesPersistedSnapshot(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(SessionState{ID: "s1", EventCount: 7, RiskCount: 2}))

	tracker := NewTracker("s1", 30*time.Minute, store)
	assert.Equal(t, StateActive, tracker.State(), "a session with history resumes active")
	assert.Equal(t, 7, tracker.Snapshot().EventCount)
	assert.Equal(t, 2, tracker.Snapshot().RiskCount)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), nil)
	state := SessionState{ID: "s1", EventCount: 3, StartTime: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}

	require.NoError(t, store.Save(state))
	loaded := store.Load("s1")
	assert.Equal(t, state.EventCount, loaded.EventCount)
	assert.True(t, state.StartTime.Equal(loaded.StartTime))
}

func TestFileStoreCorruptedSnapshotLoadsZero(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.json"), []byte("{not json"), 0o644))

	assert.Equal(t, SessionState{}, store.Load("s1"))
}

func TestFileStoreMissingSnapshotLoadsZero(t *testing.T) {
	store := NewFileStore(t.TempDir(), nil)
	assert.Equal(t, SessionState{}, store.Load("never-saved"))
}

func TestFileStoreArchiveMovesSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, nil)
	require.NoError(t, store.Save(SessionState{ID: "s1", EventCount: 1}))
	require.NoError(t, store.Archive("s1"))

	assert.Equal(t, SessionState{}, store.Load("s1"))
	_, err := os.Stat(filepath.Join(dir, "archive", "s1.json"))
	assert.NoError(t, err)
}

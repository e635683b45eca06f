package learning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "journal.jsonl")
}

func record(e *Engine, key string, successes, failures int) {
	for i := 0; i < successes; i++ {
		e.Record(key, OutcomeSuccess)
	}
	for i := 0; i < failures; i++ {
		e.Record(key, OutcomeFailure)
	}
}

func TestAdjustRequiresMinimumSamples(t *testing.T) {
	e := NewEngine("", Config{MinSamples: 5}, nil)
	record(e, "tool:Write", 4, 0)

	assert.Empty(t, e.Adjust(), "four samples is under the minimum")

	e.Record("tool:Write", OutcomeSuccess)
	deltas := e.Adjust()
	require.Len(t, deltas, 1)
	assert.Equal(t, "tool:Write", deltas[0].Key)
	assert.Greater(t, deltas[0].Delta, 0.0)
}

func TestAdjustBoundedByMaxDelta(t *testing.T) {
	e := NewEngine("", Config{MaxDelta: 0.05}, nil)
	record(e, "always-wins", 50, 0)
	record(e, "always-loses", 0, 50)

	for _, delta := range e.Adjust() {
		assert.LessOrEqual(t, delta.Delta, 0.05)
		assert.GreaterOrEqual(t, delta.Delta, -0.05)
	}
}

func TestAdjustDirectionTracksRate(t *testing.T) {
	e := NewEngine("", Config{}, nil)
	record(e, "good", 9, 1)
	record(e, "bad", 1, 9)
	record(e, "even", 5, 5)

	deltas := e.Adjust()
	byKey := map[string]float64{}
	for _, d := range deltas {
		byKey[d.Key] = d.Delta
	}
	assert.Greater(t, byKey["good"], 0.0)
	assert.Less(t, byKey["bad"], 0.0)
	_, present := byKey["even"]
	assert.False(t, present, "a 50% rate adjusts nothing")
}

func TestAdjustDeterministicOrder(t *testing.T) {
	e := NewEngine("", Config{}, nil)
	record(e, "zeta", 10, 0)
	record(e, "alpha", 0, 10)
	record(e, "mid", 8, 2)

	deltas := e.Adjust()
	require.Len(t, deltas, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"},
		[]string{deltas[0].Key, deltas[1].Key, deltas[2].Key})
}

func TestRollingWindowForgetsOldOutcomes(t *testing.T) {
	e := NewEngine("", Config{Window: 10}, nil)
	record(e, "key", 0, 10)
	record(e, "key", 10, 0)

	rate, samples := e.SuccessRate("key")
	assert.Equal(t, 10, samples, "window caps the sample count")
	assert.Equal(t, 1.0, rate, "the early failures have rolled out")
}

func TestJournalReplayAcrossRestart(t *testing.T) {
	path := journalPath(t)

	first := NewEngine(path, Config{}, nil)
	record(first, "tool:Edit", 6, 2)

	second := NewEngine(path, Config{}, nil)
	rate, samples := second.SuccessRate("tool:Edit")
	assert.Equal(t, 8, samples)
	assert.InDelta(t, 0.75, rate, 1e-9)
}

func TestJournalSkipsIsolatedBadLines(t *testing.T) {
	path := journalPath(t)
	first := NewEngine(path, Config{}, nil)
	record(first, "key", 5, 0)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("{garbage\n")...), 0o644))

	second := NewEngine(path, Config{}, nil)
	_, samples := second.SuccessRate("key")
	assert.Equal(t, 5, samples, "one bad line among good ones is skipped")
}

func TestJournalMostlyCorruptIsDiscardedWholesale(t *testing.T) {
	path := journalPath(t)
	lines := strings.Repeat("{not json at all\n", 10) +
		`{"id":"1","decision_id":"key","outcome":"success"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	e := NewEngine(path, Config{}, nil)
	_, samples := e.SuccessRate("key")
	assert.Equal(t, 0, samples, "mostly-corrupt history resets to defaults")
}

func TestEmptyPathStaysInMemory(t *testing.T) {
	e := NewEngine("", Config{}, nil)
	record(e, "key", 6, 0)
	rate, samples := e.SuccessRate("key")
	assert.Equal(t, 6, samples)
	assert.Equal(t, 1.0, rate)
}

func TestUnknownKeyHasNoSamples(t *testing.T) {
	e := NewEngine("", Config{}, nil)
	rate, samples := e.SuccessRate("never-recorded")
	assert.Equal(t, 0, samples)
	assert.Equal(t, 0.0, rate)
}

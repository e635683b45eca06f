// Package learning records decision outcomes and derives bounded threshold
// adjustments from them. History is an append-only journal replayed at
// session start; corrupted history is discarded, never fatal.
package learning

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hooksmith/internal/logging"
)

// Outcome of one recorded decision.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record is one journal entry.
type Record struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	Outcome    Outcome   `json:"outcome"`
	Delta      float64   `json:"delta,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ThresholdDelta is one bounded adjustment keyed by the decision it derives
// from. The pipeline maps keys onto detector and router configuration.
type ThresholdDelta struct {
	Key   string
	Delta float64
}

// Config bounds the learning loop. The bounds are safeguards against
// oscillation, not guarantees; they are configuration precisely because the
// right values are an open tuning question.
type Config struct {
	// MaxDelta caps the magnitude of any single adjustment. Default 0.05.
	MaxDelta float64
	// MinSamples is the sample count required before a key adjusts at all.
	// Default 5.
	MinSamples int
	// Window is the rolling window of outcomes kept per key. Default 50.
	Window int
}

func (c Config) withDefaults() Config {
	if c.MaxDelta <= 0 {
		c.MaxDelta = 0.05
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.Window <= 0 {
		c.Window = 50
	}
	return c
}

type rolling struct {
	outcomes []bool
}

func (r *rolling) add(success bool, window int) {
	r.outcomes = append(r.outcomes, success)
	if len(r.outcomes) > window {
		r.outcomes = r.outcomes[len(r.outcomes)-window:]
	}
}

func (r *rolling) rate() (float64, int) {
	if len(r.outcomes) == 0 {
		return 0, 0
	}
	successes := 0
	for _, ok := range r.outcomes {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(r.outcomes)), len(r.outcomes)
}

// Engine maintains rolling effectiveness statistics per decision key.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	journal *journal
	stats   map[string]*rolling
	logger  logging.Logger
	now     func() time.Time
	newID   func() string
}

// NewEngine builds an Engine journaling to path (empty path = in-memory
// only) and replays existing history. Corrupted history is dropped and the
// engine resumes from default thresholds.
func NewEngine(path string, cfg Config, logger logging.Logger) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		stats:  map[string]*rolling{},
		logger: logging.OrNop(logger),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	e.journal = newJournal(path, e.logger)
	for _, record := range e.journal.replay() {
		e.apply(record)
	}
	return e
}

func (e *Engine) apply(record Record) {
	stat, ok := e.stats[record.DecisionID]
	if !ok {
		stat = &rolling{}
		e.stats[record.DecisionID] = stat
	}
	stat.add(record.Outcome == OutcomeSuccess, e.cfg.Window)
}

// Record journals one decision outcome and folds it into the rolling stats.
// Journal write failures downgrade to in-memory operation silently.
func (e *Engine) Record(decisionID string, outcome Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record := Record{
		ID:         e.newID(),
		DecisionID: decisionID,
		Outcome:    outcome,
		Timestamp:  e.now(),
	}
	e.apply(record)
	e.journal.append(record)
}

// SuccessRate returns the rolling success rate and sample count for a key.
func (e *Engine) SuccessRate(decisionID string) (float64, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stat, ok := e.stats[decisionID]
	if !ok {
		return 0, 0
	}
	return stat.rate()
}

// Adjust emits one bounded delta per key that has reached the minimum
// sample count. A key succeeding more than half the time gets a positive
// delta, failing more than half a negative one, linearly scaled and clamped
// to ±MaxDelta. Output order is deterministic.
func (e *Engine) Adjust() []ThresholdDelta {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]string, 0, len(e.stats))
	for key := range e.stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var deltas []ThresholdDelta
	for _, key := range keys {
		rate, samples := e.stats[key].rate()
		if samples < e.cfg.MinSamples {
			continue
		}
		delta := (rate - 0.5) * 2 * e.cfg.MaxDelta
		if delta > e.cfg.MaxDelta {
			delta = e.cfg.MaxDelta
		}
		if delta < -e.cfg.MaxDelta {
			delta = -e.cfg.MaxDelta
		}
		if delta == 0 {
			continue
		}
		deltas = append(deltas, ThresholdDelta{Key: key, Delta: delta})
	}
	return deltas
}

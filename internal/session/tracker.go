// Package session tracks per-session lifecycle state and decides when to
// checkpoint. Checkpoints are durable snapshots; a persistence failure is
// reported but never blocks the operation that triggered it.
package session

import (
	"sync"
	"time"

	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
)

// State is the lifecycle phase of a tracked session.
type State string

const (
	StateIdle          State = "idle"
	StateActive        State = "active"
	StateCheckpointing State = "checkpointing"
	StateTerminated    State = "terminated"
)

// Checkpoint trigger reasons.
const (
	ReasonInterval = "interval"
	ReasonRisk     = "risk"
	ReasonExplicit = "explicit"
)

// SessionState is the persisted snapshot of one session.
type SessionState struct {
	ID             string    `json:"id"`
	StartTime      time.Time `json:"start_time"`
	EventCount     int       `json:"event_count"`
	LastCheckpoint time.Time `json:"last_checkpoint"`
	RiskCount      int       `json:"risk_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists session snapshots. A corrupted or missing snapshot loads
// as the zero state, never as an error the caller must handle.
type Store interface {
	Save(state SessionState) error
	Load(id string) SessionState
	Archive(id string) error
}

// DefaultCheckpointInterval applies when configuration is silent.
const DefaultCheckpointInterval = 30 * time.Minute

// DefaultRiskFactor controls how strongly each high-risk operation shrinks
// the checkpoint interval.
const DefaultRiskFactor = 0.5

// Tracker is the session state machine. It is mutated only through Observe,
// Checkpoint and Stop, all serialized by an internal lock.
type Tracker struct {
	mu         sync.Mutex
	state      State
	snapshot   SessionState
	base       time.Duration
	riskFactor float64
	store      Store
	clock      func() time.Time
	logger     logging.Logger
	metrics    *observability.Metrics
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source, used in tests.
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) { t.clock = clock }
}

// WithRiskFactor sets the per-risk-event interval shrink factor.
func WithRiskFactor(factor float64) TrackerOption {
	return func(t *Tracker) {
		if factor >= 0 {
			t.riskFactor = factor
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger logging.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logging.OrNop(logger) }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(metrics *observability.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = metrics }
}

// NewTracker builds a Tracker for the session id. Any previously persisted
// snapshot is resumed; a corrupted one starts fresh.
func NewTracker(id string, interval time.Duration, store Store, opts ...TrackerOption) *Tracker {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	t := &Tracker{
		state:      StateIdle,
		base:       interval,
		riskFactor: DefaultRiskFactor,
		store:      store,
		clock:      time.Now,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.snapshot = store.Load(id)
	t.snapshot.ID = id
	if t.snapshot.EventCount > 0 {
		t.state = StateActive
	}
	return t
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a copy of the current session state.
func (t *Tracker) Snapshot() SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// effectiveInterval shrinks the base interval proportionally to the risk
// count: base / (1 + factor*risk).
func (t *Tracker) effectiveInterval() time.Duration {
	divisor := 1 + t.riskFactor*float64(t.snapshot.RiskCount)
	return time.Duration(float64(t.base) / divisor)
}

// Observe records one event. highRisk marks a detected destructive
// operation, which bumps the risk counter and forces a checkpoint. The
// returned error is always a persistence error and is advisory only.
func (t *Tracker) Observe(highRisk bool) (checkpointed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if t.state == StateTerminated {
		return false, nil
	}
	if t.state == StateIdle {
		t.state = StateActive
		t.snapshot.StartTime = now
		t.snapshot.LastCheckpoint = now
	}
	t.snapshot.EventCount++
	t.snapshot.UpdatedAt = now

	reason := ""
	if highRisk {
		t.snapshot.RiskCount++
		reason = ReasonRisk
	} else if now.Sub(t.snapshot.LastCheckpoint) >= t.effectiveInterval() {
		reason = ReasonInterval
	}
	if reason == "" {
		return false, nil
	}
	return true, t.checkpointLocked(reason, now)
}

// Checkpoint persists a snapshot on explicit request.
func (t *Tracker) Checkpoint() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTerminated || t.state == StateIdle {
		return nil
	}
	return t.checkpointLocked(ReasonExplicit, t.clock())
}

func (t *Tracker) checkpointLocked(reason string, now time.Time) error {
	t.state = StateCheckpointing
	t.snapshot.LastCheckpoint = now
	err := t.store.Save(t.snapshot)
	t.state = StateActive
	if err != nil {
		// Reported, never blocking: the triggering operation proceeds.
		t.logger.Warn("checkpoint (%s) for session %s failed: %v", reason, t.snapshot.ID, err)
		return err
	}
	t.metrics.Checkpoint()
	t.logger.Debug("checkpoint (%s) for session %s at event %d", reason, t.snapshot.ID, t.snapshot.EventCount)
	return nil
}

// Stop terminates the session: a final snapshot is persisted and the state
// file is archived. Persistence errors are advisory.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTerminated {
		return nil
	}
	t.snapshot.UpdatedAt = t.clock()
	t.state = StateTerminated

	if err := t.store.Save(t.snapshot); err != nil {
		t.logger.Warn("final snapshot for session %s failed: %v", t.snapshot.ID, err)
		return err
	}
	if err := t.store.Archive(t.snapshot.ID); err != nil {
		t.logger.Warn("archive for session %s failed: %v", t.snapshot.ID, err)
		return err
	}
	return nil
}

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report hook pipeline activity.
type Metrics struct {
	dispatchTotal   *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec
	stageOverruns   *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	compressBackoff prometheus.Counter
	gateBlocks      prometheus.Counter
	checkpoints     prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when the pipeline is instantiated
// multiple times (e.g. in unit tests).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests that need unique metric names. Any
// registration error panics, mirroring promauto semantics so configuration
// bugs surface early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hooksmith",
				Subsystem: "pipeline",
				Name:      "dispatch_total",
				Help:      "Hook dispatches handled, by lifecycle stage and result status.",
			},
			[]string{"lifecycle_stage", "status"},
		),
		dispatchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hooksmith",
				Subsystem: "pipeline",
				Name:      "dispatch_duration_seconds",
				Help:      "Wall-clock duration of a full hook dispatch.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"lifecycle_stage"},
		),
		stageOverruns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hooksmith",
				Subsystem: "governor",
				Name:      "stage_budget_overruns_total",
				Help:      "Internal stages aborted for exceeding their wall-clock budget.",
			},
			[]string{"stage"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hooksmith",
			Subsystem: "config",
			Name:      "cache_hits_total",
			Help:      "Config loads served from the document cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hooksmith",
			Subsystem: "config",
			Name:      "cache_misses_total",
			Help:      "Config loads that required a parse.",
		}),
		compressBackoff: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hooksmith",
			Subsystem: "compress",
			Name:      "level_backoffs_total",
			Help:      "Compression retries at a lower level after an information-score miss.",
		}),
		gateBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hooksmith",
			Subsystem: "gate",
			Name:      "blocking_failures_total",
			Help:      "Quality-gate runs that produced a blocking failure.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hooksmith",
			Subsystem: "session",
			Name:      "checkpoints_total",
			Help:      "Session state checkpoints persisted.",
		}),
	}

	collectors := []prometheus.Collector{
		m.dispatchTotal, m.dispatchSeconds, m.stageOverruns,
		m.cacheHits, m.cacheMisses, m.compressBackoff, m.gateBlocks, m.checkpoints,
	}
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return m
}

// ObserveDispatch records one completed dispatch.
func (m *Metrics) ObserveDispatch(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(stage, status).Inc()
	m.dispatchSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// StageOverrun records a governor budget overrun for the named stage.
func (m *Metrics) StageOverrun(stage string) {
	if m == nil {
		return
	}
	m.stageOverruns.WithLabelValues(stage).Inc()
}

// CacheHit records a config cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss records a config cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// CompressBackoff records a compression level back-off.
func (m *Metrics) CompressBackoff() {
	if m != nil {
		m.compressBackoff.Inc()
	}
}

// GateBlock records a blocking quality-gate failure.
func (m *Metrics) GateBlock() {
	if m != nil {
		m.gateBlocks.Inc()
	}
}

// Checkpoint records a persisted session checkpoint.
func (m *Metrics) Checkpoint() {
	if m != nil {
		m.checkpoints.Inc()
	}
}

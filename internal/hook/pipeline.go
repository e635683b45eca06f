package hook

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hooksmith/internal/compress"
	"hooksmith/internal/config"
	"hooksmith/internal/gate"
	"hooksmith/internal/governor"
	"hooksmith/internal/learning"
	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
	"hooksmith/internal/pattern"
	"hooksmith/internal/router"
	"hooksmith/internal/session"
	tokenutil "hooksmith/internal/shared/token"
)

// Pipeline is the in-process hook orchestrator: one entry point per
// lifecycle stage, all dispatching synchronously. The host alone drives
// control flow; the pipeline spawns no background work of its own.
type Pipeline struct {
	mu        sync.Mutex
	configDir string
	loader    *config.Loader
	settings  *Settings

	detector *pattern.Detector
	routes   *router.Router
	engine   *compress.Engine
	gates    *gate.Pipeline
	learner  *learning.Engine

	trackers map[string]*session.Tracker
	bias     map[string]int
	store    session.Store

	obs     *observability.Logger
	logger  logging.Logger
	metrics *observability.Metrics
	clock   func() time.Time

	learningPathOverride string
}

// PipelineOption customises construction.
type PipelineOption func(*Pipeline)

// WithObservability attaches the structured logger.
func WithObservability(obs *observability.Logger) PipelineOption {
	return func(p *Pipeline) { p.obs = obs }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(metrics *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = metrics }
}

// WithStore overrides the session store, used in tests and by deployments
// that keep session state elsewhere.
func WithStore(store session.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithClock overrides the time source, used in tests.
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.clock = clock }
}

// WithLearningPath overrides the learning journal location.
func WithLearningPath(path string) PipelineOption {
	return func(p *Pipeline) { p.learningPathOverride = path }
}

// New builds a Pipeline from the documents in configDir. Configuration
// problems are the one failure class that surfaces here instead of being
// absorbed: a deployment with bad rule tables must not start quietly.
func New(configDir string, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		configDir: configDir,
		trackers:  map[string]*session.Tracker{},
		bias:      map[string]int{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.obs == nil {
		p.obs = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	p.logger = logging.FromObservability(p.obs, "pipeline")

	p.loader = config.NewLoader(
		config.WithLogger(logging.FromObservability(p.obs, "config")),
		config.WithMetrics(p.metrics),
	)
	settings, err := LoadSettings(p.loader, configDir)
	if err != nil {
		return nil, err
	}
	p.install(settings)

	if p.store == nil {
		p.store = session.NewFileStore(settings.SessionDir, logging.FromObservability(p.obs, "session"))
	}

	journalPath := settings.LearningPath
	if p.learningPathOverride != "" {
		journalPath = p.learningPathOverride
	}
	p.learner = learning.NewEngine(expandHome(journalPath), settings.Learning, logging.FromObservability(p.obs, "learning"))
	return p, nil
}

// install swaps in a settings snapshot and the stage components built from
// it.
func (p *Pipeline) install(settings *Settings) {
	p.settings = settings
	p.detector = pattern.NewDetector(settings.RuleSet, logging.FromObservability(p.obs, "pattern"))
	p.routes = router.New(settings.Table, logging.FromObservability(p.obs, "router"))
	p.engine = compress.NewEngine(settings.ScoreFloor, logging.FromObservability(p.obs, "compress"), p.metrics)
	p.gates = gate.New(settings.Gate, logging.FromObservability(p.obs, "gate"), p.metrics)
}

// Reload re-reads the configuration directory and swaps in a fresh
// snapshot. This is the explicit hot-reload point; nothing watches files.
func (p *Pipeline) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	settings, err := LoadSettings(p.loader, p.configDir)
	if err != nil {
		return err
	}
	p.install(settings)
	p.logger.Info("configuration reloaded from %s", p.configDir)
	return nil
}

// SessionStart handles the session_start lifecycle stage.
func (p *Pipeline) SessionStart(ctx context.Context, event Event) Result {
	event.Stage = StageSessionStart
	return p.dispatch(ctx, event)
}

// PreTool handles the pre_tool lifecycle stage.
func (p *Pipeline) PreTool(ctx context.Context, event Event) Result {
	event.Stage = StagePreTool
	return p.dispatch(ctx, event)
}

// PostTool handles the post_tool lifecycle stage.
func (p *Pipeline) PostTool(ctx context.Context, event Event) Result {
	event.Stage = StagePostTool
	return p.dispatch(ctx, event)
}

// Stop handles the stop lifecycle stage.
func (p *Pipeline) Stop(ctx context.Context, event Event) Result {
	event.Stage = StageStop
	return p.dispatch(ctx, event)
}

// Dispatch routes an already-tagged event, for hosts that drive the
// pipeline through a single entry point.
func (p *Pipeline) Dispatch(ctx context.Context, event Event) Result {
	switch event.Stage {
	case StageSessionStart, StagePreTool, StagePostTool, StageStop:
		return p.dispatch(ctx, event)
	default:
		return Result{Status: StatusOK, Messages: []string{"unknown lifecycle stage " + string(event.Stage) + " ignored"}}
	}
}

// dispatch is the single synchronous path every stage goes through. It
// never lets an error or panic escape: the worst outcome for the host is a
// degraded ok result.
func (p *Pipeline) dispatch(ctx context.Context, event Event) (result Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.clock()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch recovered from panic: %v", r)
			result = Result{Status: StatusOK, Messages: []string{"hook pipeline degraded, host operation unaffected"}}
		}
		p.metrics.ObserveDispatch(string(event.Stage), string(result.Status), p.clock().Sub(started))
	}()

	result = Result{Status: StatusOK}
	if ctx == nil {
		ctx = context.Background()
	}
	settings := p.settings

	// Classify event text into signals; on budget overrun the detector's
	// partial result (or none) stands in.
	text := strings.TrimSpace(event.Tool + " " + event.Arguments)
	matches, _ := governor.Run(ctx, budgetClassify, settings.Budgets[budgetClassify], p.logger, p.metrics,
		nil, func(c context.Context) []pattern.Match {
			return p.detector.Classify(c, text)
		})
	highRisk := hasHighRisk(matches)

	// Plan capability activations.
	constraints := router.Constraints{
		MaxActivations: settings.MaxActivations,
		CostCeiling:    settings.CostCeiling,
		PriorityBias:   p.biasSnapshot(),
	}
	plan, _ := governor.Run(ctx, budgetRoute, settings.Budgets[budgetRoute], p.logger, p.metrics,
		router.ActivationPlan{}, func(context.Context) router.ActivationPlan {
			return p.routes.Plan(matches, constraints)
		})

	result.Directives.ActivateCapabilities = plan.Capabilities()
	result.Directives.ApplyFlags = buildFlags(matches, highRisk)

	// File-modifying events go through the quality gates.
	if event.Stage == StagePostTool && settings.FileTools[event.Tool] {
		if files := changedFiles(event.Arguments); len(files) > 0 {
			report, completed := governor.Run(ctx, budgetGate, settings.Budgets[budgetGate], p.logger, p.metrics,
				gate.Report{Status: gate.AggregateOK}, func(context.Context) gate.Report {
					return p.gates.Validate(files)
				})
			result.Messages = append(result.Messages, report.Messages()...)
			switch {
			case report.Blocked():
				result.block()
			case report.Status == gate.AggregateWarn:
				result.warn()
			}
			if completed {
				p.recordGateOutcome(event.Tool, report)
			}
		}
	}

	// Decision outcomes feed the learning engine synchronously within the
	// call; adjustments land at session boundaries.
	if event.Stage == StagePostTool {
		p.learner.Record("tool:"+event.Tool, toolOutcome(event.Arguments))
	}
	for _, activation := range plan {
		outcome := learning.OutcomeSuccess
		if result.Status == StatusBlock {
			outcome = learning.OutcomeFailure
		}
		p.learner.Record("capability:"+activation.Capability, outcome)
	}

	// Session tracking and checkpoints.
	tracker := p.tracker(event.SessionID)
	if checkpointed, err := tracker.Observe(highRisk); err != nil {
		result.Messages = append(result.Messages, "checkpoint not persisted: "+err.Error())
		result.warn()
	} else if checkpointed {
		result.Messages = append(result.Messages, "session checkpoint taken")
	}

	switch event.Stage {
	case StageSessionStart:
		p.applyLearning()
	case StageStop:
		if err := tracker.Stop(); err != nil {
			result.Messages = append(result.Messages, "session archive failed: "+err.Error())
			result.warn()
		}
		delete(p.trackers, event.SessionID)
		p.applyLearning()
	}

	p.compactMessages(ctx, &result)

	p.obs.Info("dispatch",
		"lifecycle_stage", string(event.Stage),
		"session_id", event.SessionID,
		"tool", event.Tool,
		"status", string(result.Status),
		"matches", len(matches),
		"activations", len(plan),
		"elapsed", p.clock().Sub(started).String(),
	)
	return result
}

// compactMessages compresses outbound text when it exceeds the configured
// token budget. Compression failure or overrun degrades to the original
// messages.
func (p *Pipeline) compactMessages(ctx context.Context, result *Result) {
	budget := p.settings.OutputBudget
	if budget <= 0 || len(result.Messages) == 0 {
		return
	}
	joined := strings.Join(result.Messages, "\n")
	if tokenutil.CountTokens(joined) <= budget {
		return
	}
	fitted, completed := governor.Run(ctx, budgetCompress, p.settings.Budgets[budgetCompress], p.logger, p.metrics,
		compress.Result{Text: joined, Score: 1}, func(context.Context) compress.Result {
			return p.engine.Fit(joined, budget)
		})
	if !completed || fitted.Text == joined {
		return
	}
	result.Messages = strings.Split(fitted.Text, "\n")
	result.Directives.ApplyFlags = append(result.Directives.ApplyFlags,
		"compressed=level-"+levelTag(fitted.Level))
}

func levelTag(level compress.Level) string {
	return string(rune('0' + int(level)))
}

func (p *Pipeline) tracker(sessionID string) *session.Tracker {
	if tracker, ok := p.trackers[sessionID]; ok {
		return tracker
	}
	tracker := session.NewTracker(sessionID, p.settings.CheckpointInterval, p.store,
		session.WithRiskFactor(p.settings.RiskFactor),
		session.WithLogger(logging.FromObservability(p.obs, "session")),
		session.WithMetrics(p.metrics),
		session.WithClock(p.clock),
	)
	p.trackers[sessionID] = tracker
	return tracker
}

func (p *Pipeline) recordGateOutcome(tool string, report gate.Report) {
	outcome := learning.OutcomeSuccess
	if report.Blocked() {
		outcome = learning.OutcomeFailure
	}
	p.learner.Record("gate:"+tool, outcome)
}

// applyLearning folds bounded threshold deltas back into the detector floor
// and the router priority bias.
func (p *Pipeline) applyLearning() {
	deltas := p.learner.Adjust()
	var floorShift float64
	shifted := 0
	for _, delta := range deltas {
		switch {
		case strings.HasPrefix(delta.Key, "capability:"):
			id := strings.TrimPrefix(delta.Key, "capability:")
			p.bias[id] = clampInt(p.bias[id]+int(math.Round(delta.Delta*100)), -10, 10)
		case strings.HasPrefix(delta.Key, "tool:"), strings.HasPrefix(delta.Key, "gate:"):
			floorShift += delta.Delta
			shifted++
		}
	}
	if shifted > 0 {
		// Successful sessions admit more signals; failing ones tighten.
		p.detector.AdjustFloor(-floorShift / float64(shifted))
	}
	if len(deltas) > 0 {
		p.logger.Debug("applied %d learning deltas (floor now %.2f)", len(deltas), p.detector.Floor())
	}
}

func (p *Pipeline) biasSnapshot() map[string]int {
	if len(p.bias) == 0 {
		return nil
	}
	snapshot := make(map[string]int, len(p.bias))
	for key, value := range p.bias {
		snapshot[key] = value
	}
	return snapshot
}

func hasHighRisk(matches []pattern.Match) bool {
	for _, match := range matches {
		if match.Category == "risk" && match.Signal == "high_risk_operation" {
			return true
		}
	}
	return false
}

// buildFlags emits host directives for the strongest mode signal and the
// risk posture. Matches arrive sorted, so the first mode match is the
// strongest.
func buildFlags(matches []pattern.Match, highRisk bool) []string {
	var flags []string
	for _, match := range matches {
		if match.Category == "mode" {
			flags = append(flags, "mode="+match.Signal)
			break
		}
	}
	if highRisk {
		flags = append(flags, "risk=elevated")
	}
	return flags
}

func toolOutcome(arguments string) learning.Outcome {
	lowered := strings.ToLower(arguments)
	for _, marker := range []string{"\"error\"", "traceback", "exception", "failed with", "exit status 1"} {
		if strings.Contains(lowered, marker) {
			return learning.OutcomeFailure
		}
	}
	return learning.OutcomeSuccess
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Package gate runs the staged quality validation pipeline over changed
// files. Eight ordered, independently skippable stages produce a report;
// "skipped because the checker is unavailable" is a distinct state from
// "passed" so a degraded environment never manufactures false confidence.
package gate

import (
	"os"

	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
)

// Stage status values.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Aggregate report status values.
const (
	AggregateOK      = "ok"
	AggregateWarn    = "warn"
	AggregateBlocked = "blocked"
)

// Stage names, in execution order.
var stageOrder = []string{
	StageSyntax, StageTypes, StageLint, StageSecurity,
	StageTests, StagePerformance, StageDocs, StageIntegration,
}

const (
	StageSyntax      = "syntax"
	StageTypes       = "types"
	StageLint        = "lint"
	StageSecurity    = "security"
	StageTests       = "tests"
	StagePerformance = "performance"
	StageDocs        = "docs"
	StageIntegration = "integration"
)

// StageResult is the outcome of one stage for one file.
type StageResult struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Messages []string `json:"messages,omitempty"`
	Blocking bool     `json:"blocking"`
}

// FileReport collects the stage results for a single file.
type FileReport struct {
	Path   string        `json:"path"`
	Stages []StageResult `json:"stages"`
}

// Report is the aggregate validation outcome. Status is blocked iff any
// stage anywhere failed while marked blocking.
type Report struct {
	Files  []FileReport `json:"files"`
	Status string       `json:"status"`
}

// Blocked reports whether the host's operation must be refused.
func (r Report) Blocked() bool {
	return r.Status == AggregateBlocked
}

// Messages flattens every failure and skip note for host display.
func (r Report) Messages() []string {
	var out []string
	for _, file := range r.Files {
		for _, stage := range file.Stages {
			for _, msg := range stage.Messages {
				out = append(out, file.Path+": "+stage.Name+": "+msg)
			}
		}
	}
	return out
}

// CheckFunc inspects one file and returns findings. A non-nil error means
// the checker itself could not run, which marks the stage skipped, never
// failed.
type CheckFunc func(path string, content []byte) ([]string, error)

type stage struct {
	name      string
	blocking  bool
	available func() bool
	check     CheckFunc
}

// Config tunes the pipeline. Security and syntax failures are always
// blocking; Blocking can promote advisory stages but not demote those two.
type Config struct {
	// Skip disables the named stages; they report skipped.
	Skip map[string]bool
	// Blocking promotes the named advisory stages to blocking.
	Blocking map[string]bool
	// ShortCircuit stops a file's remaining stages after the first blocking
	// failure. Off by default so diagnostics stay complete.
	ShortCircuit bool
	// ExternalCheckers marks stages whose external checker is installed;
	// stages requiring one and not listed here report skipped.
	ExternalCheckers map[string]bool
}

// Pipeline validates changed files through the staged checkers.
type Pipeline struct {
	stages   []stage
	cfg      Config
	readFile func(string) ([]byte, error)
	logger   logging.Logger
	metrics  *observability.Metrics
}

// New builds a Pipeline with the built-in heuristic checkers.
func New(cfg Config, logger logging.Logger, metrics *observability.Metrics) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		readFile: os.ReadFile,
		logger:   logging.OrNop(logger),
		metrics:  metrics,
	}
	p.stages = builtinStages(cfg)
	return p
}

// Validate runs every stage over every file. All stages run to completion
// unless short-circuiting was explicitly configured.
func (p *Pipeline) Validate(paths []string) Report {
	report := Report{Status: AggregateOK}
	anyFailed := false
	anyBlocked := false

	for _, path := range paths {
		fileReport := FileReport{Path: path}
		content, readErr := p.readFile(path)
		blocked := false

		for _, st := range p.stages {
			result := StageResult{Name: st.name, Blocking: st.blocking}
			switch {
			case p.cfg.Skip[st.name]:
				result.Status = StatusSkipped
				result.Messages = []string{"stage disabled by configuration"}
			case blocked && p.cfg.ShortCircuit:
				result.Status = StatusSkipped
				result.Messages = []string{"short-circuited after blocking failure"}
			case st.available != nil && !st.available():
				result.Status = StatusSkipped
				result.Messages = []string{"required checker unavailable"}
			case readErr != nil:
				result.Status = StatusSkipped
				result.Messages = []string{"file unreadable: " + readErr.Error()}
			default:
				findings, err := st.check(path, content)
				if err != nil {
					result.Status = StatusSkipped
					result.Messages = []string{"checker error: " + err.Error()}
					p.logger.Warn("gate stage %s on %s could not run: %v", st.name, path, err)
				} else if len(findings) > 0 {
					result.Status = StatusFailed
					result.Messages = findings
					anyFailed = true
					if st.blocking {
						blocked = true
						anyBlocked = true
					}
				} else {
					result.Status = StatusPassed
				}
			}
			fileReport.Stages = append(fileReport.Stages, result)
		}
		report.Files = append(report.Files, fileReport)
	}

	switch {
	case anyBlocked:
		report.Status = AggregateBlocked
		p.metrics.GateBlock()
	case anyFailed:
		report.Status = AggregateWarn
	}
	return report
}

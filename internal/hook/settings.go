package hook

import (
	"time"

	"hooksmith/internal/compress"
	"hooksmith/internal/config"
	"hooksmith/internal/gate"
	"hooksmith/internal/learning"
	"hooksmith/internal/pattern"
	"hooksmith/internal/router"
	"hooksmith/internal/session"
)

// Stage budget keys. Every internal stage runs under its own wall-clock
// budget; overruns substitute the stage fallback.
const (
	budgetClassify = "classify"
	budgetRoute    = "route"
	budgetGate     = "gate"
	budgetCompress = "compress"
)

// Settings is the immutable snapshot of configuration one pipeline version
// runs on. Rule tables are loaded once and passed by value to each stage;
// hot reload swaps the whole snapshot through Pipeline.Reload.
type Settings struct {
	RuleSet *pattern.RuleSet
	Table   router.Table

	MaxActivations int
	CostCeiling    float64

	ScoreFloor   float64
	OutputBudget int

	CheckpointInterval time.Duration
	RiskFactor         float64
	SessionDir         string

	LearningPath string
	Learning     learning.Config

	Gate      gate.Config
	FileTools map[string]bool

	Budgets map[string]time.Duration
}

// LoadSettings merges every document in configDir and materializes the
// pipeline settings. Bad rule tables or malformed documents are
// ConfigErrors: they abort construction, not dispatch.
func LoadSettings(loader *config.Loader, configDir string) (*Settings, error) {
	doc, err := loader.LoadDir(configDir)
	if err != nil {
		return nil, err
	}

	ruleSet, err := pattern.RuleSetFromDoc(doc)
	if err != nil {
		return nil, err
	}
	table, err := router.TableFromDoc(doc)
	if err != nil {
		return nil, err
	}

	fileTools := map[string]bool{}
	for _, tool := range config.GetStringSlice(doc, "gate.file_tools", []string{"Write", "Edit", "MultiEdit", "NotebookEdit"}) {
		fileTools[tool] = true
	}

	settings := &Settings{
		RuleSet:            ruleSet,
		Table:              table,
		MaxActivations:     config.GetInt(doc, "capabilities.max_activations", router.DefaultMaxActivations),
		CostCeiling:        config.GetFloat(doc, "capabilities.cost_ceiling", 0),
		ScoreFloor:         config.GetFloat(doc, "compression.score_floor", compress.DefaultScoreFloor),
		OutputBudget:       config.GetInt(doc, "compression.output_budget_tokens", 500),
		CheckpointInterval: config.GetDuration(doc, "session.checkpoint_interval", session.DefaultCheckpointInterval),
		RiskFactor:         config.GetFloat(doc, "session.risk_factor", session.DefaultRiskFactor),
		SessionDir:         config.GetString(doc, "session.dir", "~/.hooksmith/sessions"),
		LearningPath:       config.GetString(doc, "learning.journal", "~/.hooksmith/learning.jsonl"),
		Learning: learning.Config{
			MaxDelta:   config.GetFloat(doc, "learning.max_delta", 0.05),
			MinSamples: config.GetInt(doc, "learning.min_samples", 5),
			Window:     config.GetInt(doc, "learning.window", 50),
		},
		Gate: gate.Config{
			Skip:             toBoolMap(config.GetStringSlice(doc, "gate.skip", nil)),
			Blocking:         toBoolMap(config.GetStringSlice(doc, "gate.blocking", nil)),
			ShortCircuit:     config.GetBool(doc, "gate.short_circuit", false),
			ExternalCheckers: toBoolMap(config.GetStringSlice(doc, "gate.external_checkers", nil)),
		},
		FileTools: fileTools,
		Budgets: map[string]time.Duration{
			budgetClassify: config.GetDuration(doc, "budgets.classify", 100*time.Millisecond),
			budgetRoute:    config.GetDuration(doc, "budgets.route", 50*time.Millisecond),
			budgetGate:     config.GetDuration(doc, "budgets.gate", 150*time.Millisecond),
			budgetCompress: config.GetDuration(doc, "budgets.compress", 100*time.Millisecond),
		},
	}
	return settings, nil
}

func toBoolMap(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		out[key] = true
	}
	return out
}

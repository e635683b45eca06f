package pattern

import (
	"math"

	"hooksmith/internal/config"
	"hooksmith/internal/hookerr"
)

func floatBits(f float64) uint64     { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// DefaultFloor is the confidence floor used when configuration is silent.
const DefaultFloor = 0.55

// DefaultRules is the built-in rule table. Deployments normally override it
// with a patterns document; the built-ins keep the detector useful when none
// is installed.
func DefaultRules() []Rule {
	return []Rule{
		{Signal: "discovery", Category: "mode", Kind: KindKeyword, Weight: 0.9,
			Keywords: []string{"brainstorm", "not sure", "explore", "what if", "requirements", "idea", "maybe we could"}},
		{Signal: "implementation", Category: "mode", Kind: KindKeyword, Weight: 0.85,
			Keywords: []string{"implement", "build", "create", "add feature", "wire up", "write the"}},
		{Signal: "debugging", Category: "mode", Kind: KindKeyword, Weight: 0.9,
			Keywords: []string{"bug", "error", "crash", "stack trace", "panic", "fix", "regression"}},
		{Signal: "refactoring", Category: "mode", Kind: KindKeyword, Weight: 0.85,
			Keywords: []string{"refactor", "clean up", "restructure", "simplify", "extract", "rename"}},
		{Signal: "high_risk_operation", Category: "risk", Kind: KindRegex, Weight: 0.95,
			Pattern: `rm\s+-[a-z]*rf?|drop\s+(table|database|schema)|truncate\s+table|force[- ]push|delete\s+all|>\s*/dev/sd`},
		{Signal: "large_change", Category: "risk", Kind: KindStructural, Weight: 0.8},
		{Signal: "documentation", Category: "capability", Kind: KindKeyword, Weight: 0.8,
			Keywords: []string{"document", "readme", "changelog", "docstring", "api reference"}},
		{Signal: "testing", Category: "capability", Kind: KindKeyword, Weight: 0.8,
			Keywords: []string{"test", "coverage", "assert", "unit test", "integration test"}},
		{Signal: "code_search", Category: "capability", Kind: KindKeyword, Weight: 0.75,
			Keywords: []string{"find", "search", "locate", "where is", "grep"}},
		{Signal: "security_review", Category: "capability", Kind: KindRegex, Weight: 0.9,
			Pattern: `vulnerab|cve-\d{4}|sql\s+injection|xss|hard-?coded\s+(secret|credential|password)`},
	}
}

// RuleSetFromDoc builds a RuleSet from a configuration document, falling back
// to the built-in table when the document has no patterns section. The
// expected shape is:
//
//	patterns:
//	  version: "2026-01"
//	  confidence_floor: 0.55
//	  rules:
//	    - signal: discovery
//	      category: mode
//	      kind: keyword
//	      weight: 0.9
//	      keywords: [brainstorm, explore]
func RuleSetFromDoc(doc *config.Document) (*RuleSet, error) {
	version := config.GetString(doc, "patterns.version", "builtin")
	floor := config.GetFloat(doc, "patterns.confidence_floor", DefaultFloor)

	raw, ok := config.Get(doc, "patterns.rules", nil).([]any)
	if !ok || len(raw) == 0 {
		ruleSet, err := NewRuleSet(version, floor, DefaultRules())
		if err != nil {
			return nil, hookerr.NewConfigError(docPath(doc), err)
		}
		return ruleSet, nil
	}

	rules := make([]Rule, 0, len(raw))
	for _, entry := range raw {
		mapping, ok := entry.(map[string]any)
		if !ok {
			return nil, hookerr.Configf(docPath(doc), "patterns.rules entries must be mappings, got %T", entry)
		}
		item := &config.Document{Data: mapping}
		rules = append(rules, Rule{
			Signal:   config.GetString(item, "signal", ""),
			Category: config.GetString(item, "category", "mode"),
			Kind:     config.GetString(item, "kind", KindKeyword),
			Keywords: config.GetStringSlice(item, "keywords", nil),
			Pattern:  config.GetString(item, "pattern", ""),
			Weight:   config.GetFloat(item, "weight", 0.5),
		})
	}

	ruleSet, err := NewRuleSet(version, floor, rules)
	if err != nil {
		return nil, hookerr.NewConfigError(docPath(doc), err)
	}
	return ruleSet, nil
}

func docPath(doc *config.Document) string {
	if doc == nil {
		return ""
	}
	return doc.Path
}

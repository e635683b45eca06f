// Package pattern classifies host event text into weighted behavioral
// signals. Rules are data: they arrive from configuration, are compiled once
// per rule-set version, and are passed by value to the detector so there is
// no ambient mutable rule state.
package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"hooksmith/internal/logging"
)

// Rule kinds. A keyword rule scores by containment, a regex rule by pattern
// hits, a structural rule by the scale of file/directory counts mentioned.
const (
	KindKeyword    = "keyword"
	KindRegex      = "regex"
	KindStructural = "structural"
)

// Rule is one data-driven classification rule.
type Rule struct {
	Signal   string
	Category string
	Kind     string
	Keywords []string
	Pattern  string
	Weight   float64
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// RuleSet is an immutable, versioned set of compiled rules plus the
// confidence floor below which matches are discarded.
type RuleSet struct {
	Version string
	Floor   float64
	rules   []compiledRule
}

// NewRuleSet compiles rules into a RuleSet. Invalid regex syntax or an
// out-of-range weight is a hard error: rules are deployment configuration.
func NewRuleSet(version string, floor float64, rules []Rule) (*RuleSet, error) {
	if floor < 0 || floor > 1 {
		return nil, fmt.Errorf("confidence floor %v out of [0,1]", floor)
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Weight < 0 || rule.Weight > 1 {
			return nil, fmt.Errorf("rule %s: weight %v out of [0,1]", rule.Signal, rule.Weight)
		}
		cr := compiledRule{Rule: rule}
		switch rule.Kind {
		case KindKeyword:
			if len(rule.Keywords) == 0 {
				return nil, fmt.Errorf("rule %s: keyword rule without keywords", rule.Signal)
			}
		case KindRegex, KindStructural:
			pattern := rule.Pattern
			if rule.Kind == KindStructural && pattern == "" {
				pattern = defaultStructuralPattern
			}
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Signal, err)
			}
			cr.re = re
		default:
			return nil, fmt.Errorf("rule %s: unknown kind %q", rule.Signal, rule.Kind)
		}
		compiled = append(compiled, cr)
	}
	return &RuleSet{Version: version, Floor: floor, rules: compiled}, nil
}

// defaultStructuralPattern matches mentions of file/directory scale, e.g.
// "touching 40 files across 6 directories".
const defaultStructuralPattern = `(\d+)\s+(?:files?|director(?:y|ies)|modules?|packages?)`

// Match is one detected signal with its confidence and matched spans.
type Match struct {
	Signal     string
	Category   string
	Confidence float64
	Spans      [][2]int
}

// Detector applies a RuleSet to event text. The confidence floor is held in
// an atomic so the learning engine can nudge it between dispatches without a
// lock on the classify path.
type Detector struct {
	rules  *RuleSet
	floor  atomic.Uint64 // math.Float64bits
	logger logging.Logger
}

// NewDetector builds a Detector over rules.
func NewDetector(rules *RuleSet, logger logging.Logger) *Detector {
	d := &Detector{rules: rules, logger: logging.OrNop(logger)}
	d.setFloor(rules.Floor)
	return d
}

func (d *Detector) setFloor(f float64) {
	d.floor.Store(floatBits(f))
}

// Floor returns the current confidence floor.
func (d *Detector) Floor() float64 {
	return floatFromBits(d.floor.Load())
}

// AdjustFloor shifts the confidence floor by delta, clamped to [0.05, 0.95]
// so learning can never disable or saturate classification.
func (d *Detector) AdjustFloor(delta float64) {
	next := d.Floor() + delta
	if next < 0.05 {
		next = 0.05
	}
	if next > 0.95 {
		next = 0.95
	}
	d.setFloor(next)
}

// Classify scores text against every rule and returns matches at or above
// the confidence floor. One match is kept per (signal, category); signals
// from different categories are never merged. When the context deadline
// expires mid-scan, the best partial result so far is returned rather than
// an error.
func (d *Detector) Classify(ctx context.Context, text string) []Match {
	lowered := strings.ToLower(text)
	best := map[string]Match{}

	for _, rule := range d.rules.rules {
		if deadlineExceeded(ctx) {
			d.logger.Warn("classification budget hit after %d/%d rules, returning partial", len(best), len(d.rules.rules))
			break
		}
		confidence, spans := scoreRule(rule, text, lowered)
		if confidence <= 0 {
			continue
		}
		key := rule.Signal + "\x00" + rule.Category
		if existing, ok := best[key]; !ok || confidence > existing.Confidence {
			best[key] = Match{Signal: rule.Signal, Category: rule.Category, Confidence: confidence, Spans: spans}
		}
	}

	floor := d.Floor()
	matches := make([]Match, 0, len(best))
	for _, match := range best {
		if match.Confidence >= floor {
			matches = append(matches, match)
		}
	}
	sortMatches(matches)
	return matches
}

// sortMatches orders deterministically: category, then confidence descending,
// then signal id.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Category != matches[j].Category {
			return matches[i].Category < matches[j].Category
		}
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Signal < matches[j].Signal
	})
}

func scoreRule(rule compiledRule, text, lowered string) (float64, [][2]int) {
	switch rule.Kind {
	case KindKeyword:
		return scoreKeywords(rule, lowered)
	case KindRegex:
		return scoreRegex(rule, text)
	case KindStructural:
		return scoreStructural(rule, text)
	}
	return 0, nil
}

// scoreKeywords: any hit starts at 60% of the rule weight and each further
// keyword closes the remaining gap, so single strong keywords clear a
// mid-range floor while multi-keyword agreement approaches the full weight.
func scoreKeywords(rule compiledRule, lowered string) (float64, [][2]int) {
	var spans [][2]int
	matched := 0
	for _, keyword := range rule.Keywords {
		idx := strings.Index(lowered, strings.ToLower(keyword))
		if idx < 0 {
			continue
		}
		matched++
		spans = append(spans, [2]int{idx, idx + len(keyword)})
	}
	if matched == 0 {
		return 0, nil
	}
	fraction := float64(matched) / float64(len(rule.Keywords))
	return rule.Weight * (0.6 + 0.4*fraction), spans
}

func scoreRegex(rule compiledRule, text string) (float64, [][2]int) {
	locs := rule.re.FindAllStringIndex(text, 4)
	if len(locs) == 0 {
		return 0, nil
	}
	spans := make([][2]int, len(locs))
	for i, loc := range locs {
		spans[i] = [2]int{loc[0], loc[1]}
	}
	density := float64(len(locs)) / 4
	if density > 1 {
		density = 1
	}
	return rule.Weight * (0.7 + 0.3*density), spans
}

// scoreStructural reads the largest count mentioned and scales confidence
// with it; ten or more files/directories is treated as full scale.
func scoreStructural(rule compiledRule, text string) (float64, [][2]int) {
	groups := rule.re.FindAllStringSubmatchIndex(text, -1)
	if len(groups) == 0 {
		return 0, nil
	}
	largest := 0
	var spans [][2]int
	for _, group := range groups {
		spans = append(spans, [2]int{group[0], group[1]})
		if len(group) >= 4 && group[2] >= 0 {
			if n, err := strconv.Atoi(text[group[2]:group[3]]); err == nil && n > largest {
				largest = n
			}
		}
	}
	scale := float64(largest) / 10
	if scale > 1 {
		scale = 1
	}
	return rule.Weight * (0.5 + 0.5*scale), spans
}

func deadlineExceeded(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Now().After(deadline)
}

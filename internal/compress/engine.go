// Package compress rewrites outbound text to fit a token budget. Five
// monotonically more aggressive levels apply symbol substitution,
// domain abbreviations, filler removal, article dropping and structural
// reformatting; protected content is byte-identical at every level. A
// preserved-information score below the configured floor makes the engine
// back off one level and retry, never abort.
package compress

import (
	"strings"

	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
	tokenutil "hooksmith/internal/shared/token"
)

// Level selects how aggressive compression is. Levels are cumulative: each
// level applies every transform of the levels below it plus one more.
type Level int

const (
	LevelMin Level = 1
	LevelMax Level = 5
)

// DefaultScoreFloor is the preserved-information floor used when
// configuration is silent.
const DefaultScoreFloor = 0.70

func clampLevel(level Level) Level {
	if level < LevelMin {
		return LevelMin
	}
	if level > LevelMax {
		return LevelMax
	}
	return level
}

// Result describes one compression outcome.
type Result struct {
	Text             string
	Level            Level
	OriginalTokens   int
	CompressedTokens int
	// Ratio is compressed/original token count; lower is tighter.
	Ratio float64
	// Score is the preserved-information estimate in [0,1].
	Score float64
}

// Engine applies leveled compression with a preserved-information floor.
type Engine struct {
	floor   float64
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewEngine builds an Engine; floor outside (0,1] falls back to the default.
func NewEngine(floor float64, logger logging.Logger, metrics *observability.Metrics) *Engine {
	if floor <= 0 || floor > 1 {
		floor = DefaultScoreFloor
	}
	return &Engine{floor: floor, logger: logging.OrNop(logger), metrics: metrics}
}

// Compress rewrites text at the requested level. If the preserved-
// information score lands under the floor the engine retries one level
// lower, down to LevelMin, whose result is returned regardless of score.
// Compression at a fixed level is idempotent.
func (e *Engine) Compress(text string, level Level) Result {
	level = clampLevel(level)
	for {
		compressed := applyLevel(text, level)
		result := e.buildResult(text, compressed, level)
		if result.Score >= e.floor || level == LevelMin {
			return result
		}
		e.metrics.CompressBackoff()
		e.logger.Debug("score %.2f under floor %.2f at level %d, backing off", result.Score, e.floor, level)
		level--
	}
}

// Fit escalates the level until the compressed text fits budgetTokens or
// LevelMax is reached. A text already within budget is returned unchanged at
// level zero.
func (e *Engine) Fit(text string, budgetTokens int) Result {
	original := tokenutil.CountTokens(text)
	if budgetTokens <= 0 || original <= budgetTokens {
		return Result{Text: text, OriginalTokens: original, CompressedTokens: original, Ratio: 1, Score: 1}
	}
	var result Result
	for level := LevelMin; level <= LevelMax; level++ {
		result = e.Compress(text, level)
		if result.CompressedTokens <= budgetTokens {
			return result
		}
		if result.Level < level {
			// The floor forced a back-off; pushing the requested level
			// higher cannot tighten the output further.
			return result
		}
	}
	return result
}

func (e *Engine) buildResult(original, compressed string, level Level) Result {
	originalTokens := tokenutil.CountTokens(original)
	compressedTokens := tokenutil.CountTokens(compressed)
	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(compressedTokens) / float64(originalTokens)
	}
	return Result{
		Text:             compressed,
		Level:            level,
		OriginalTokens:   originalTokens,
		CompressedTokens: compressedTokens,
		Ratio:            ratio,
		Score:            preservedScore(original, compressed),
	}
}

// applyLevel runs the cumulative transform chain on the unprotected portion
// of text.
func applyLevel(text string, level Level) string {
	protected := protect(text)
	out := protected.text
	if level >= 1 {
		out = applySymbols(out)
	}
	if level >= 2 {
		out = applyAbbreviations(out)
	}
	if level >= 3 {
		out = applyFillerRemoval(out)
	}
	if level >= 4 {
		out = applyArticleDrop(out)
	}
	if level >= 5 {
		out = applyBulletReformat(out)
	}
	return protected.restore(out)
}

// preservedScore estimates information retention as the fraction of the
// original's key terms still findable in the compressed text. A term
// rewritten to its known abbreviation or symbol counts as preserved.
func preservedScore(original, compressed string) float64 {
	terms := keyTerms(original)
	if len(terms) == 0 {
		return 1
	}
	haystack := strings.ToLower(compressed)
	preserved := 0
	for term := range terms {
		if strings.Contains(haystack, term) {
			preserved++
			continue
		}
		if alias, ok := termAliases[term]; ok && strings.Contains(haystack, alias) {
			preserved++
		}
	}
	return float64(preserved) / float64(len(terms))
}

// termAliases maps key terms to the replacement the transforms emit for
// them, so lossless rewrites are not scored as information loss.
var termAliases = buildTermAliases()

func buildTermAliases() map[string]string {
	aliases := make(map[string]string, len(abbreviationTable)+len(symbolTable))
	for _, entry := range abbreviationTable {
		aliases[entry.long] = entry.short
	}
	for _, entry := range symbolTable {
		if !strings.ContainsRune(entry.phrase, ' ') {
			aliases[entry.phrase] = strings.ToLower(entry.symbol)
		}
	}
	return aliases
}

var scoreStopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "would": true, "should": true, "could": true, "been": true,
	"they": true, "their": true, "there": true, "where": true, "when": true,
	"what": true, "which": true, "while": true, "about": true, "after": true,
	"before": true, "into": true, "over": true, "under": true, "then": true,
	"than": true, "them": true, "these": true, "those": true, "some": true,
	"such": true, "only": true, "also": true, "just": true, "each": true,
}

// keyTerms extracts the significant lowercase words of text: length four or
// more and not a stopword.
func keyTerms(text string) map[string]bool {
	terms := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,;:!?()[]{}\"'`")
		if len(word) < 4 || scoreStopwords[word] {
			continue
		}
		terms[word] = true
	}
	return terms
}

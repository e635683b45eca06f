package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const fencedBlock = "```go\nfunc main() {\n\tfmt.Println(\"the   configuration stays\")\n}\n```"

var sampleText = strings.Join([]string{
	"The configuration loader failed because the database connection timed out.",
	"Basically we should really update the documentation in order to explain the retry behavior.",
	fencedBlock,
	"Run `make test` after the change and check \"retry budget exceeded\" in the log.",
}, "\n")

// permissive floor so the requested level sticks and back-off stays out of
// the way.
func rawEngine() *Engine {
	return NewEngine(0.01, nil, nil)
}

func TestCompressReducesTokens(t *testing.T) {
	result := rawEngine().Compress(sampleText, 3)
	assert.Less(t, result.CompressedTokens, result.OriginalTokens)
	assert.Less(t, result.Ratio, 1.0)
	assert.Equal(t, Level(3), result.Level)
}

func TestCompressIdempotentAtEveryLevel(t *testing.T) {
	e := rawEngine()
	for level := LevelMin; level <= LevelMax; level++ {
		once := e.Compress(sampleText, level)
		twice := e.Compress(once.Text, level)
		assert.Equal(t, once.Text, twice.Text, "level %d must be a fixpoint", level)
	}
}

func TestCompressIdempotentWithDottedSubstitutions(t *testing.T) {
	// "for example" and "and so on" rewrite to dotted forms whose periods
	// feed the sentence splitter at level 5; a second pass must not split
	// the already-bulleted output again.
	text := "Use caching for example redis and so on because latency matters. It leads to faster lookups."
	e := rawEngine()
	for level := LevelMin; level <= LevelMax; level++ {
		once := e.Compress(text, level)
		twice := e.Compress(once.Text, level)
		assert.Equal(t, once.Text, twice.Text, "level %d", level)
	}
}

func TestCompressProtectedContentByteIdentical(t *testing.T) {
	e := rawEngine()
	for level := LevelMin; level <= LevelMax; level++ {
		result := e.Compress(sampleText, level)
		assert.Contains(t, result.Text, fencedBlock, "fenced code must survive level %d untouched", level)
		assert.Contains(t, result.Text, "`make test`")
		assert.Contains(t, result.Text, `"retry budget exceeded"`)
	}
}

func TestCompressScoreNonIncreasingAcrossLevels(t *testing.T) {
	e := rawEngine()
	prev := 1.0
	for level := LevelMin; level <= LevelMax; level++ {
		result := e.Compress(sampleText, level)
		assert.LessOrEqual(t, result.Score, prev, "level %d", level)
		prev = result.Score
	}
}

func TestCompressLosslessRewritesScoreFull(t *testing.T) {
	// Symbol and abbreviation substitution is reversible, so levels 1 and 2
	// lose nothing by the preserved-information measure.
	result := rawEngine().Compress("The configuration failed because the database restarted.", 2)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
}

func TestCompressBacksOffUnderFloor(t *testing.T) {
	// Filler-heavy text: level 3 strips most key terms, which lands the
	// score far under the default floor. The engine must retry lower, not
	// abort, and the returned level reflects where it settled.
	text := "Basically really simply actually essentially obviously we basically refactor the codebase."
	e := NewEngine(DefaultScoreFloor, nil, nil)

	result := e.Compress(text, 5)
	assert.Less(t, result.Level, Level(3), "fillers only drop from level 3 up")
	assert.GreaterOrEqual(t, result.Score, DefaultScoreFloor)
	assert.NotEmpty(t, result.Text)
}

func TestCompressLevelMinReturnedRegardlessOfScore(t *testing.T) {
	// Even when no level clears the floor, level 1 output comes back.
	e := NewEngine(1.0, nil, nil)
	result := e.Compress("Lock contention leads to deadlock.", 4)
	assert.Equal(t, LevelMin, result.Level)
	assert.NotEmpty(t, result.Text)
}

func TestCompressClampsLevel(t *testing.T) {
	e := rawEngine()
	assert.Equal(t, LevelMin, e.Compress(sampleText, 0).Level)
	assert.Equal(t, LevelMax, e.Compress(sampleText, 9).Level)
}

func TestFitWithinBudgetReturnsUnchanged(t *testing.T) {
	result := rawEngine().Fit("short note", 1000)
	assert.Equal(t, "short note", result.Text)
	assert.Equal(t, Level(0), result.Level)
	assert.Equal(t, 1.0, result.Ratio)
}

func TestFitEscalatesUntilBudgetMet(t *testing.T) {
	text := strings.Repeat("basically really actually quite simply the padding continues ", 40) + "done."
	result := rawEngine().Fit(text, 200)
	assert.LessOrEqual(t, result.CompressedTokens, 200)
	assert.GreaterOrEqual(t, result.Level, Level(3), "filler removal is what makes this text fit")
}

func TestFitStopsEscalatingAfterBackOff(t *testing.T) {
	// With a strict floor every aggressive level collapses back; Fit must
	// terminate instead of looping on levels that cannot stick.
	text := strings.Repeat("basically really simply padding ", 50)
	e := NewEngine(0.99, nil, nil)
	result := e.Fit(text, 1)
	assert.NotEmpty(t, result.Text)
	assert.LessOrEqual(t, result.Level, Level(2))
}

package compress

import (
	"regexp"
	"strings"
)

// Substitution tables are ordered so longer phrases are replaced before
// their sub-phrases. Every replacement is a fixpoint: no output token ever
// matches an input key, which is what makes a fixed level idempotent.

var symbolTable = []struct{ phrase, symbol string }{
	{"with respect to", "w.r.t."},
	{"greater than or equal to", "≥"},
	{"less than or equal to", "≤"},
	{"results in", "→"},
	{"leads to", "→"},
	{"for example", "e.g."},
	{"that is to say", "i.e."},
	{"and so on", "etc."},
	{"approximately", "≈"},
	{"therefore", "∴"},
	{"because", "∵"},
	{"succeeded", "✓"},
	{"failed", "✗"},
}

var abbreviationTable = []struct{ long, short string }{
	{"configurations", "configs"},
	{"configuration", "config"},
	{"implementations", "impls"},
	{"implementation", "impl"},
	{"documentation", "docs"},
	{"repositories", "repos"},
	{"repository", "repo"},
	{"environments", "envs"},
	{"environment", "env"},
	{"performance", "perf"},
	{"applications", "apps"},
	{"application", "app"},
	{"directories", "dirs"},
	{"directory", "dir"},
	{"functions", "funcs"},
	{"function", "func"},
	{"databases", "dbs"},
	{"database", "db"},
	{"information", "info"},
	{"development", "dev"},
	{"management", "mgmt"},
	{"parameters", "params"},
	{"parameter", "param"},
	{"dependencies", "deps"},
	{"dependency", "dep"},
	{"specification", "spec"},
	{"authentication", "auth"},
	{"administrator", "admin"},
}

var fillerPhrases = []string{
	"it should be noted that ",
	"please note that ",
	"as a matter of fact, ",
	"needless to say, ",
	"in order to",
}

var fillerWords = []string{
	"basically", "actually", "really", "very", "quite", "simply",
	"essentially", "literally", "obviously", "certainly",
}

// replaceWord performs whole-word, case-insensitive replacement.
func replaceWord(text, word, replacement string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllString(text, replacement)
}

// replacePhrase is case-insensitive but not boundary-anchored, for
// multi-word phrases.
func replacePhrase(text, phrase, replacement string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
	return re.ReplaceAllString(text, replacement)
}

func applySymbols(text string) string {
	for _, entry := range symbolTable {
		if strings.ContainsRune(entry.phrase, ' ') {
			text = replacePhrase(text, entry.phrase, entry.symbol)
		} else {
			text = replaceWord(text, entry.phrase, entry.symbol)
		}
	}
	return text
}

func applyAbbreviations(text string) string {
	for _, entry := range abbreviationTable {
		text = replaceWord(text, entry.long, entry.short)
	}
	return text
}

func applyFillerRemoval(text string) string {
	for _, phrase := range fillerPhrases {
		replacement := ""
		if phrase == "in order to" {
			replacement = "to"
		}
		text = replacePhrase(text, phrase, replacement)
	}
	for _, word := range fillerWords {
		text = replaceWord(text, word+" ", "")
		text = replaceWord(text, word, "")
	}
	return collapseSpaces(text)
}

var articlePattern = regexp.MustCompile(`(?i)\b(?:the|an|a)[ ]`)

func applyArticleDrop(text string) string {
	return collapseSpaces(articlePattern.ReplaceAllString(text, ""))
}

var spaceRuns = regexp.MustCompile(`[ \t]{2,}`)

func collapseSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(spaceRuns.ReplaceAllString(line, " "), " \t")
	}
	return strings.Join(lines, "\n")
}

var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

// applyBulletReformat rewrites prose paragraphs as bullet lists. Lines that
// already look structured (bullets, headings, tables, placeholders) pass
// through unchanged, which keeps the transform idempotent.
func applyBulletReformat(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isStructured(trimmed) {
			out = append(out, line)
			continue
		}
		sentences := sentenceSplit.Split(trimmed, -1)
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(strings.TrimRight(sentence, ".!?"))
			if sentence == "" {
				continue
			}
			out = append(out, "- "+sentence)
		}
	}
	return strings.Join(out, "\n")
}

func isStructured(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "- "),
		strings.HasPrefix(trimmed, "* "),
		strings.HasPrefix(trimmed, "#"),
		strings.HasPrefix(trimmed, "|"),
		strings.HasPrefix(trimmed, ">"),
		strings.HasPrefix(trimmed, "\x00"):
		return true
	}
	return false
}

package gate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinStages wires the eight ordered stages. Syntax and security are
// always blocking; the rest are advisory unless promoted via Config.
func builtinStages(cfg Config) []stage {
	blocking := func(name string, always bool) bool {
		return always || cfg.Blocking[name]
	}
	external := func(name string) func() bool {
		return func() bool { return cfg.ExternalCheckers[name] }
	}
	return []stage{
		{name: StageSyntax, blocking: true, check: checkSyntax},
		{name: StageTypes, blocking: blocking(StageTypes, false), available: external(StageTypes), check: checkExternal(StageTypes)},
		{name: StageLint, blocking: blocking(StageLint, false), check: checkLint},
		{name: StageSecurity, blocking: true, check: checkSecurity},
		{name: StageTests, blocking: blocking(StageTests, false), check: checkTestReadiness},
		{name: StagePerformance, blocking: blocking(StagePerformance, false), check: checkPerformance},
		{name: StageDocs, blocking: blocking(StageDocs, false), check: checkDocs},
		{name: StageIntegration, blocking: blocking(StageIntegration, false), available: external(StageIntegration), check: checkExternal(StageIntegration)},
	}
}

// checkExternal is the placeholder for stages that delegate to an installed
// external tool; reaching it without one is a checker error (→ skipped).
func checkExternal(name string) CheckFunc {
	return func(string, []byte) ([]string, error) {
		return nil, fmt.Errorf("%s checker has no built-in implementation", name)
	}
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true,
	".java": true, ".c": true, ".cc": true, ".cpp": true, ".rs": true,
	".sh": true,
}

// checkSyntax validates structured formats outright and balance-checks
// delimiters in code files. It is deliberately shallow: a real parser is an
// external checker; this stage only catches files that cannot possibly be
// well formed.
func checkSyntax(path string, content []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if !json.Valid(content) {
			return []string{"invalid JSON"}, nil
		}
		return nil, nil
	case ".yaml", ".yml":
		var out any
		if err := yaml.Unmarshal(content, &out); err != nil {
			return []string{"invalid YAML: " + err.Error()}, nil
		}
		return nil, nil
	}
	if !codeExtensions[ext] {
		return nil, nil
	}

	var findings []string
	text := string(content)
	pairs := []struct {
		open, close rune
		label       string
	}{
		{'{', '}', "braces"},
		{'(', ')', "parentheses"},
		{'[', ']', "brackets"},
	}
	for _, pair := range pairs {
		opens := strings.Count(text, string(pair.open))
		closes := strings.Count(text, string(pair.close))
		if opens != closes {
			findings = append(findings, fmt.Sprintf("unbalanced %s: %d open, %d close", pair.label, opens, closes))
		}
	}
	return findings, nil
}

var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|passwd|password|access[_-]?token)\s*[:=]\s*["'][^"']{8,}["']`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |PGP )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)authorization:\s*(bearer|basic)\s+[a-z0-9+/._=-]{16,}`),
}

var insecurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\beval\s*\(\s*(request|input|params)`),
	regexp.MustCompile(`(?i)verify\s*=\s*False`),
	regexp.MustCompile(`(?i)InsecureSkipVerify:\s*true`),
}

// checkSecurity scans for hard-coded credentials and insecure idioms. Any
// finding here is blocking.
func checkSecurity(path string, content []byte) ([]string, error) {
	text := string(content)
	var findings []string
	for _, pattern := range credentialPatterns {
		if loc := pattern.FindStringIndex(text); loc != nil {
			findings = append(findings, fmt.Sprintf("hard-coded credential at byte %d (%s)", loc[0], pattern.String()))
		}
	}
	for _, pattern := range insecurePatterns {
		if pattern.MatchString(text) {
			findings = append(findings, "insecure pattern: "+pattern.String())
		}
	}
	return findings, nil
}

const maxLineLength = 160

func checkLint(path string, content []byte) ([]string, error) {
	lines := strings.Split(string(content), "\n")
	var findings []string
	long := 0
	trailing := 0
	todos := 0
	for _, line := range lines {
		if len(line) > maxLineLength {
			long++
		}
		if line != strings.TrimRight(line, " \t") {
			trailing++
		}
		if strings.Contains(line, "TODO") || strings.Contains(line, "FIXME") {
			todos++
		}
	}
	if long > 0 {
		findings = append(findings, fmt.Sprintf("%d lines exceed %d characters", long, maxLineLength))
	}
	if trailing > 3 {
		findings = append(findings, fmt.Sprintf("%d lines with trailing whitespace", trailing))
	}
	if todos > 5 {
		findings = append(findings, fmt.Sprintf("%d TODO/FIXME markers", todos))
	}
	return findings, nil
}

// checkTestReadiness flags test files that declare no tests; it cannot see
// the rest of the repository, so source files pass.
func checkTestReadiness(path string, content []byte) ([]string, error) {
	base := filepath.Base(path)
	text := string(content)
	switch {
	case strings.HasSuffix(base, "_test.go"):
		if !strings.Contains(text, "func Test") && !strings.Contains(text, "func Benchmark") && !strings.Contains(text, "func Fuzz") {
			return []string{"test file declares no Test/Benchmark/Fuzz functions"}, nil
		}
	case strings.HasSuffix(base, ".test.js"), strings.HasSuffix(base, ".test.ts"), strings.HasSuffix(base, "_test.py"):
		if !strings.Contains(text, "test") && !strings.Contains(text, "it(") {
			return []string{"test file declares no test cases"}, nil
		}
	}
	return nil, nil
}

var performancePatterns = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`(?i)select\s+\*\s+from`), "SELECT * query; project the needed columns"},
	{regexp.MustCompile(`(?i)sleep\s*\(`), "sleep in code path; prefer event-driven waiting"},
	{regexp.MustCompile(`(?m)^\s+for\s.*\{\s*$\n(?:.*\n)*?^\s+for\s.*\{\s*$\n(?:.*\n)*?^\s+for\s`), "triple-nested loop"},
}

func checkPerformance(path string, content []byte) ([]string, error) {
	text := string(content)
	var findings []string
	for _, entry := range performancePatterns {
		if entry.pattern.MatchString(text) {
			findings = append(findings, entry.message)
		}
	}
	return findings, nil
}

// checkDocs wants roughly one comment line per fifty lines of code in code
// files of meaningful size.
func checkDocs(path string, content []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !codeExtensions[ext] {
		return nil, nil
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) < 50 {
		return nil, nil
	}
	comments := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			comments++
		}
	}
	if comments*50 < len(lines) {
		return []string{fmt.Sprintf("%d comment lines for %d total lines", comments, len(lines))}, nil
	}
	return nil, nil
}

package gate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func stageResult(t *testing.T, report Report, path, stageName string) StageResult {
	t.Helper()
	for _, file := range report.Files {
		if file.Path != path {
			continue
		}
		for _, st := range file.Stages {
			if st.Name == stageName {
				return st
			}
		}
	}
	t.Fatalf("no %s result for %s", stageName, path)
	return StageResult{}
}

func TestValidateCleanFilePasses(t *testing.T) {
	path := writeTemp(t, "ok.json", `{"a": 1}`)
	report := New(Config{}, nil, nil).Validate([]string{path})

	assert.Equal(t, AggregateOK, report.Status)
	assert.False(t, report.Blocked())
	assert.Equal(t, StatusPassed, stageResult(t, report, path, StageSyntax).Status)
	assert.Equal(t, StatusPassed, stageResult(t, report, path, StageSecurity).Status)
}

func TestValidateCredentialBlocks(t *testing.T) {
	path := writeTemp(t, "settings.py", `api_key = "sk-live-0123456789abcdef"`)
	report := New(Config{}, nil, nil).Validate([]string{path})

	assert.Equal(t, AggregateBlocked, report.Status)
	assert.True(t, report.Blocked())
	security := stageResult(t, report, path, StageSecurity)
	assert.Equal(t, StatusFailed, security.Status)
	assert.True(t, security.Blocking)
	assert.Contains(t, strings.Join(report.Messages(), "\n"), "hard-coded credential")
}

func TestValidateCredentialBlocksEvenWhenEverythingElsePasses(t *testing.T) {
	clean := writeTemp(t, "ok.json", `{"a": 1}`)
	dirty := writeTemp(t, "deploy.sh", `PASSWORD="hunter2hunter2"`+"\n")
	report := New(Config{}, nil, nil).Validate([]string{clean, dirty})

	assert.True(t, report.Blocked(), "one blocking failure blocks the whole report")
}

func TestValidateInvalidJSONBlocks(t *testing.T) {
	path := writeTemp(t, "broken.json", `{"a": `)
	report := New(Config{}, nil, nil).Validate([]string{path})

	assert.True(t, report.Blocked())
	assert.Equal(t, StatusFailed, stageResult(t, report, path, StageSyntax).Status)
}

func TestValidateAdvisoryFailureWarnsOnly(t *testing.T) {
	path := writeTemp(t, "wide.go", "package wide\n\nvar x = \""+strings.Repeat("y", 200)+"\"\n")
	report := New(Config{}, nil, nil).Validate([]string{path})

	assert.Equal(t, AggregateWarn, report.Status)
	assert.False(t, report.Blocked())
	lint := stageResult(t, report, path, StageLint)
	assert.Equal(t, StatusFailed, lint.Status)
	assert.False(t, lint.Blocking)
}

func TestValidateMissingExternalCheckerSkipsNotPasses(t *testing.T) {
	path := writeTemp(t, "ok.json", `{"a": 1}`)
	report := New(Config{}, nil, nil).Validate([]string{path})

	types := stageResult(t, report, path, StageTypes)
	assert.Equal(t, StatusSkipped, types.Status, "unavailable checker must not report passed")
	assert.Contains(t, types.Messages[0], "unavailable")
	assert.Equal(t, AggregateOK, report.Status, "skips alone never block")
}

func TestValidateCheckerErrorSkips(t *testing.T) {
	// Marking the stage available routes it to the delegating checker, which
	// errors; the stage must land on skipped, not failed.
	path := writeTemp(t, "ok.json", `{"a": 1}`)
	cfg := Config{ExternalCheckers: map[string]bool{StageTypes: true}}
	report := New(cfg, nil, nil).Validate([]string{path})

	types := stageResult(t, report, path, StageTypes)
	assert.Equal(t, StatusSkipped, types.Status)
	assert.Contains(t, types.Messages[0], "checker error")
}

func TestValidateConfiguredSkip(t *testing.T) {
	path := writeTemp(t, "wide.go", "package wide\n\nvar x = \""+strings.Repeat("y", 200)+"\"\n")
	cfg := Config{Skip: map[string]bool{StageLint: true}}
	report := New(cfg, nil, nil).Validate([]string{path})

	assert.Equal(t, StatusSkipped, stageResult(t, report, path, StageLint).Status)
	assert.Equal(t, AggregateOK, report.Status)
}

func TestValidateBlockingPromotion(t *testing.T) {
	path := writeTemp(t, "report.sql", "select * from accounts;\n")
	cfg := Config{Blocking: map[string]bool{StagePerformance: true}}
	report := New(cfg, nil, nil).Validate([]string{path})

	perf := stageResult(t, report, path, StagePerformance)
	assert.Equal(t, StatusFailed, perf.Status)
	assert.True(t, perf.Blocking)
	assert.True(t, report.Blocked())
}

func TestValidateShortCircuitIsOptIn(t *testing.T) {
	content := `secret = "abcdefghijklmnop"` + "\n"
	path := writeTemp(t, "creds.py", content)

	full := New(Config{}, nil, nil).Validate([]string{path})
	assert.Equal(t, StatusPassed, stageResult(t, full, path, StageDocs).Status,
		"without short-circuit, later stages still run")

	short := New(Config{ShortCircuit: true}, nil, nil).Validate([]string{path})
	docs := stageResult(t, short, path, StageDocs)
	assert.Equal(t, StatusSkipped, docs.Status)
	assert.Contains(t, docs.Messages[0], "short-circuited")
	assert.True(t, short.Blocked())
}

func TestValidateUnreadableFileSkipsAllStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.go")
	report := New(Config{}, nil, nil).Validate([]string{path})

	require.Len(t, report.Files, 1)
	for _, st := range report.Files[0].Stages {
		assert.Equal(t, StatusSkipped, st.Status, st.Name)
	}
	assert.Equal(t, AggregateOK, report.Status)
}

func TestValidateTestFileWithoutTests(t *testing.T) {
	path := writeTemp(t, "empty_test.go", "package empty\n")
	report := New(Config{}, nil, nil).Validate([]string{path})

	tests := stageResult(t, report, path, StageTests)
	assert.Equal(t, StatusFailed, tests.Status)
	assert.Equal(t, AggregateWarn, report.Status)
}

func TestValidateEmptyInput(t *testing.T) {
	report := New(Config{}, nil, nil).Validate(nil)
	assert.Equal(t, AggregateOK, report.Status)
	assert.Empty(t, report.Files)
}

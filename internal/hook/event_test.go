package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventDefaults(t *testing.T) {
	event, err := ParseEvent(nil)
	require.NoError(t, err)
	assert.Equal(t, "default", event.SessionID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestParseEventFullPayload(t *testing.T) {
	payload := `{"lifecycle_stage":"pre_tool","tool_name":"Bash","arguments":"ls","session_id":"s9"}`
	event, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, StagePreTool, event.Stage)
	assert.Equal(t, "Bash", event.Tool)
	assert.Equal(t, "s9", event.SessionID)
}

func TestParseEventRejectsBrokenJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{"tool_name":`))
	assert.Error(t, err)
}

func TestExitCodeContract(t *testing.T) {
	assert.Equal(t, 0, Result{Status: StatusOK}.ExitCode())
	assert.Equal(t, 1, Result{Status: StatusWarn}.ExitCode())
	assert.Equal(t, 2, Result{Status: StatusBlock}.ExitCode())
	assert.Equal(t, 0, Result{}.ExitCode(), "zero value maps to ok")
}

func TestWarnNeverDowngradesBlock(t *testing.T) {
	r := Result{Status: StatusOK}
	r.block()
	r.warn()
	assert.Equal(t, StatusBlock, r.Status)
}

func TestChangedFilesStructuredArguments(t *testing.T) {
	args := `{"file_path":"internal/app/server.go","edits":[{"file_path":"internal/app/server.go"},{"file_path":"internal/app/routes.go"}]}`
	files := changedFiles(args)
	assert.Equal(t, []string{"internal/app/server.go", "internal/app/routes.go"}, files)
}

func TestChangedFilesTokenFallback(t *testing.T) {
	files := changedFiles("run gofmt on pkg/util/strings.go and pkg/util/strings.go again")
	assert.Equal(t, []string{"pkg/util/strings.go"}, files, "tokens deduplicate")
}

func TestChangedFilesNoneFound(t *testing.T) {
	assert.Empty(t, changedFiles("echo hello"))
}

func TestChangedFilesBounded(t *testing.T) {
	var args string
	for i := 0; i < 40; i++ {
		args += " file" + string(rune('a'+i%26)) + string(rune('0'+i/26)) + ".go"
	}
	assert.LessOrEqual(t, len(changedFiles(args)), maxChangedFiles)
}

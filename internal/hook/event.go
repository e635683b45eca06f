// Package hook is the host-facing pipeline: one entry point per lifecycle
// stage, each dispatching synchronously through classification, routing,
// validation, compression and session tracking. No error or panic raised
// inside the pipeline ever reaches the host; every entry point returns a
// well-formed, possibly degraded result.
package hook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage tags the lifecycle point the host is invoking.
type Stage string

const (
	StageSessionStart Stage = "session_start"
	StagePreTool      Stage = "pre_tool"
	StagePostTool     Stage = "post_tool"
	StageStop         Stage = "stop"
)

// Event is the structured record the host supplies per invocation. Absent
// optional fields default to empty; the wire encoding beyond this shape is
// the host's business.
type Event struct {
	Stage     Stage     `json:"lifecycle_stage"`
	Tool      string    `json:"tool_name"`
	Arguments string    `json:"arguments"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseEvent decodes a host event, tolerating absent optional fields. Only
// a syntactically broken payload errors.
func ParseEvent(data []byte) (Event, error) {
	var event Event
	if len(data) > 0 {
		if err := json.Unmarshal(data, &event); err != nil {
			return Event{}, fmt.Errorf("parse event: %w", err)
		}
	}
	if event.SessionID == "" {
		event.SessionID = "default"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event, nil
}

// Status of one dispatch, host-side.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusBlock Status = "block"
)

// Directives tell the host what to do; the pipeline never calls back into
// the host directly.
type Directives struct {
	ActivateCapabilities []string `json:"activate_capabilities"`
	ApplyFlags           []string `json:"apply_flags"`
}

// Result is the structured output per invocation.
type Result struct {
	Status     Status     `json:"status"`
	Messages   []string   `json:"messages"`
	Directives Directives `json:"directives"`
}

// ExitCode maps the status onto the process exit contract: 0 ok, 1
// non-blocking warning, 2 blocking failure.
func (r Result) ExitCode() int {
	switch r.Status {
	case StatusBlock:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

func (r *Result) warn() {
	if r.Status == StatusOK {
		r.Status = StatusWarn
	}
}

func (r *Result) block() {
	r.Status = StatusBlock
}

// Package hookerr defines the error taxonomy shared by the hook pipeline.
//
// The classification drives recovery policy: configuration errors surface
// loudly at load time, stage timeouts are absorbed with a partial result,
// validation findings travel inside reports instead of error values, and
// persistence errors downgrade the session to in-memory operation.
package hookerr

import (
	"errors"
	"fmt"
)

// ConfigError reports malformed or missing configuration. It is the only
// error class that should abort startup; a deployment shipping bad config
// must hear about it immediately.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err with the offending document path.
func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

// Configf builds a ConfigError from a format string.
func Configf(path, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}

// TimeoutError records a stage exceeding its wall-clock budget. It is always
// recovered locally: the governor substitutes the stage fallback and logs the
// overrun, so the host never sees this as a failure.
type TimeoutError struct {
	Stage  string
	Budget string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage %s exceeded budget %s", e.Stage, e.Budget)
}

// ValidationFailure marks a quality-gate finding. Findings are reported, not
// thrown; this type exists so callers that do receive one (misuse) can still
// classify it.
type ValidationFailure struct {
	Stage   string
	File    string
	Message string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation %s on %s: %s", e.Stage, e.File, e.Message)
}

// PersistenceError reports a failed cache or history read/write. Recovery is
// to fall back to in-memory operation for the remainder of the session.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Package governor wraps pipeline stages with independent wall-clock
// budgets. A stage exceeding its budget is aborted and its fallback output
// substituted; the overrun is logged and metered but never propagated as a
// failure, because an unhandled overrun would let the host's outer timeout
// kill the whole call with no result at all.
package governor

import (
	"context"
	"time"

	"hooksmith/internal/hookerr"
	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
)

// Run executes fn under budget and returns its result, or fallback when the
// budget elapses first. The second return reports whether the stage
// completed in time. fn receives a context whose deadline is the budget and
// is expected to honor it; an ignoring fn costs at most one parked
// goroutine until it returns on its own.
func Run[T any](ctx context.Context, name string, budget time.Duration, logger logging.Logger, metrics *observability.Metrics, fallback T, fn func(context.Context) T) (T, bool) {
	if budget <= 0 {
		return fn(ctx), true
	}
	staged, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		done <- fn(staged)
	}()

	select {
	case result := <-done:
		return result, true
	case <-staged.Done():
		overrun := &hookerr.TimeoutError{Stage: name, Budget: budget.String()}
		logging.OrNop(logger).Warn("%v; substituting fallback", overrun)
		metrics.StageOverrun(name)
		return fallback, false
	}
}

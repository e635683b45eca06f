package governor

import (
	"context"
	"testing"
	"time"
)

func TestRunReturnsResultWithinBudget(t *testing.T) {
	got, ok := Run(context.Background(), "fast", time.Second, nil, nil, -1, func(context.Context) int {
		return 42
	})
	if !ok {
		t.Fatal("stage finished in time but was reported as overrun")
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestRunSubstitutesFallbackOnOverrun(t *testing.T) {
	got, ok := Run(context.Background(), "slow", 10*time.Millisecond, nil, nil, "fallback", func(ctx context.Context) string {
		select {
		case <-time.After(5 * time.Second):
			return "too late"
		case <-ctx.Done():
			return "cancelled"
		}
	})
	if ok {
		t.Fatal("overrun was not reported")
	}
	if got != "fallback" {
		t.Fatalf("got %q, want the fallback", got)
	}
}

func TestRunZeroBudgetRunsInline(t *testing.T) {
	ran := false
	got, ok := Run(context.Background(), "unbudgeted", 0, nil, nil, 0, func(context.Context) int {
		ran = true
		return 7
	})
	if !ok || !ran || got != 7 {
		t.Fatalf("inline run misbehaved: got=%d ok=%v ran=%v", got, ok, ran)
	}
}

func TestRunHonorsOuterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, ok := Run(ctx, "cancelled", time.Second, nil, nil, "fallback", func(ctx context.Context) string {
		<-ctx.Done()
		return "saw cancel"
	})
	// Either outcome is acceptable for a pre-cancelled context, but the call
	// must return promptly and never panic.
	_ = got
	_ = ok
}

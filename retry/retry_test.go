package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func quick(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := quick(3).Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := quick(3).Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	base := errors.New("still broken")
	err := quick(3).Do(context.Background(), "submit form", func() error {
		calls++
		return base
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "submit form failed after 3 attempts") {
		t.Fatalf("unexpected error message %q", err.Error())
	}
}

func TestDo_StopIsTerminal(t *testing.T) {
	calls := 0
	terminal := errors.New("no such case")
	err := quick(5).Do(context.Background(), "op", func() error {
		calls++
		return Stop(terminal)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, terminal) {
		t.Fatalf("expected the terminal error back, got %v", err)
	}
}

func TestDo_ContextCancelsBackoff(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := policy.Do(ctx, "op", func() error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDefaultPolicy_ClampsAttempts(t *testing.T) {
	if p := DefaultPolicy(0); p.MaxAttempts != 1 {
		t.Fatalf("expected at least 1 attempt, got %d", p.MaxAttempts)
	}
}

package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	"dhc_scraper/models"
)

func waitForPending(t *testing.T, m *ManualOverride, id string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, ch := range m.Pending() {
			if ch.ID == id {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("challenge %s never showed up as pending", id)
}

func TestManualOverride_AnswerResumesSolve(t *testing.T) {
	m := NewManualOverride(time.Second)
	ch := &models.CaptchaChallenge{ID: "ch-1"}

	type result struct {
		answer string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		answer, err := m.Solve(context.Background(), ch)
		done <- result{answer, err}
	}()

	waitForPending(t, m, "ch-1")
	if err := m.Answer("ch-1", "ab12cd"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("solve failed: %v", res.err)
	}
	if res.answer != "ab12cd" {
		t.Fatalf("expected operator answer, got %q", res.answer)
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("expected no pending challenges after answer")
	}
}

func TestManualOverride_Timeout(t *testing.T) {
	m := NewManualOverride(20 * time.Millisecond)

	_, err := m.Solve(context.Background(), &models.CaptchaChallenge{ID: "ch-1"})
	var cErr *models.CaptchaError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CaptchaError, got %v", err)
	}
	if cErr.Reason != models.CaptchaManualTimeout {
		t.Fatalf("expected manual timeout reason, got %s", cErr.Reason)
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("expected timed-out challenge removed from pending")
	}
}

func TestManualOverride_CancelledContext(t *testing.T) {
	m := NewManualOverride(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := m.Solve(ctx, &models.CaptchaChallenge{ID: "ch-1"})
		done <- err
	}()

	waitForPending(t, m, "ch-1")
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestManualOverride_AnswerValidation(t *testing.T) {
	m := NewManualOverride(time.Minute)

	if err := m.Answer("ch-1", "!!"); err == nil {
		t.Fatalf("expected malformed answer rejected")
	}
	if err := m.Answer("nope", "ab12cd"); err == nil {
		t.Fatalf("expected unknown challenge rejected")
	}
}

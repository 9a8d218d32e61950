package captcha

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dhc_scraper/models"
)

type scriptedStrategy struct {
	answers []string
	errs    []error
	calls   int
}

func (s *scriptedStrategy) Solve(ctx context.Context, ch *models.CaptchaChallenge) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.answers) {
		return s.answers[i], nil
	}
	return "", fmt.Errorf("unexpected solve call %d", i)
}

func challenge(attempts int) *models.CaptchaChallenge {
	return &models.CaptchaChallenge{ID: "ch-1", AttemptsRemaining: attempts}
}

func TestResolver_SucceedsWithinBudget(t *testing.T) {
	auto := &scriptedStrategy{
		errs:    []error{errors.New("unreadable"), errors.New("unreadable"), nil},
		answers: []string{"", "", "x7k2p"},
	}
	r := NewResolver(auto, nil)

	ch := challenge(3)
	answer, err := r.Resolve(context.Background(), ch)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if answer != "x7k2p" {
		t.Fatalf("expected solved answer, got %q", answer)
	}
	if auto.calls != 3 {
		t.Fatalf("expected 3 solver calls, got %d", auto.calls)
	}
	if ch.AttemptsRemaining != 0 {
		t.Fatalf("expected budget fully consumed, got %d left", ch.AttemptsRemaining)
	}
}

func TestResolver_ExhaustedWithoutManual(t *testing.T) {
	auto := &scriptedStrategy{
		errs: []error{errors.New("unreadable"), errors.New("unreadable")},
	}
	r := NewResolver(auto, nil)

	_, err := r.Resolve(context.Background(), challenge(2))
	var cErr *models.CaptchaError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CaptchaError, got %v", err)
	}
	if cErr.Reason != models.CaptchaExhausted {
		t.Fatalf("expected exhausted, got %s", cErr.Reason)
	}
	if cErr.Attempts != 2 {
		t.Fatalf("expected 2 attempts reported, got %d", cErr.Attempts)
	}
	if auto.calls != 2 {
		t.Fatalf("expected exactly 2 solver calls, got %d", auto.calls)
	}
}

func TestResolver_MalformedAnswerConsumesAttempt(t *testing.T) {
	auto := &scriptedStrategy{answers: []string{"!", "??"}}
	r := NewResolver(auto, nil)

	_, err := r.Resolve(context.Background(), challenge(2))
	var cErr *models.CaptchaError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CaptchaError for malformed answers, got %v", err)
	}
	if auto.calls != 2 {
		t.Fatalf("expected 2 solver calls, got %d", auto.calls)
	}
}

func TestResolver_FallsBackToManual(t *testing.T) {
	auto := &scriptedStrategy{errs: []error{errors.New("unreadable")}}
	manual := &scriptedStrategy{answers: []string{"k9m2"}}
	r := NewResolver(auto, manual)

	answer, err := r.Resolve(context.Background(), challenge(1))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if answer != "k9m2" {
		t.Fatalf("expected manual answer, got %q", answer)
	}
	if auto.calls != 1 || manual.calls != 1 {
		t.Fatalf("expected auto then manual exactly once, got %d/%d", auto.calls, manual.calls)
	}
}

func TestResolver_ManualOnly(t *testing.T) {
	manual := &scriptedStrategy{answers: []string{"ab12"}}
	r := NewResolver(nil, manual)

	answer, err := r.Resolve(context.Background(), challenge(3))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if answer != "ab12" {
		t.Fatalf("expected manual answer, got %q", answer)
	}
}

func TestValidAnswer(t *testing.T) {
	valid := []string{"ab12", "X7K2P9", "12345678"}
	for _, answer := range valid {
		if !ValidAnswer(answer) {
			t.Fatalf("expected %q to be valid", answer)
		}
	}
	invalid := []string{"", "abc", "123456789", "ab 12", "ab!2"}
	for _, answer := range invalid {
		if ValidAnswer(answer) {
			t.Fatalf("expected %q to be invalid", answer)
		}
	}
}

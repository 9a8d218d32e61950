// Package captcha resolves portal challenges: an automated solver API
// first, a human operator as fallback.
package captcha

import (
	"context"
	"log"

	"dhc_scraper/models"
)

// Strategy turns a challenge image into an answer string.
type Strategy interface {
	Solve(ctx context.Context, ch *models.CaptchaChallenge) (string, error)
}

type Resolver struct {
	auto   Strategy
	manual Strategy // nil when manual override is disabled
}

func NewResolver(auto Strategy, manual Strategy) *Resolver {
	return &Resolver{auto: auto, manual: manual}
}

// Resolve runs the automated strategy until the challenge's attempt
// budget is spent, then falls back to manual override when enabled.
// Every automated call consumes one unit of AttemptsRemaining.
func (r *Resolver) Resolve(ctx context.Context, ch *models.CaptchaChallenge) (string, error) {
	attempts := 0
	for r.auto != nil && ch.AttemptsRemaining > 0 {
		ch.AttemptsRemaining--
		attempts++

		answer, err := r.auto.Solve(ctx, ch)
		if err == nil && ValidAnswer(answer) {
			return answer, nil
		}
		if err != nil {
			log.Printf("Captcha %s: solver attempt %d failed: %v", ch.ID, attempts, err)
		} else {
			log.Printf("Captcha %s: solver attempt %d returned malformed answer", ch.ID, attempts)
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if r.manual != nil {
		log.Printf("Captcha %s: solver exhausted, waiting on operator", ch.ID)
		answer, err := r.manual.Solve(ctx, ch)
		if err != nil {
			return "", err
		}
		return answer, nil
	}

	return "", &models.CaptchaError{Reason: models.CaptchaExhausted, Attempts: attempts}
}

// ValidAnswer checks the portal's captcha format: alphanumeric, 4-8
// characters.
func ValidAnswer(answer string) bool {
	if len(answer) < 4 || len(answer) > 8 {
		return false
	}
	for _, c := range answer {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

package captcha

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dhc_scraper/models"
)

// ManualOverride suspends a query until a human operator supplies the
// answer through the API, or the manual timeout elapses. A stalled
// challenge holds only its own session, never the whole pool.
type ManualOverride struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingChallenge
}

type pendingChallenge struct {
	challenge *models.CaptchaChallenge
	answerCh  chan string
	posted    time.Time
}

func NewManualOverride(timeout time.Duration) *ManualOverride {
	return &ManualOverride{
		timeout: timeout,
		pending: make(map[string]*pendingChallenge),
	}
}

func (m *ManualOverride) Solve(ctx context.Context, ch *models.CaptchaChallenge) (string, error) {
	p := &pendingChallenge{
		challenge: ch,
		answerCh:  make(chan string, 1),
		posted:    time.Now(),
	}

	m.mu.Lock()
	m.pending[ch.ID] = p
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, ch.ID)
		m.mu.Unlock()
	}()

	log.Printf("Captcha %s: posted for manual solve (timeout %s)", ch.ID, m.timeout)

	select {
	case answer := <-p.answerCh:
		return answer, nil
	case <-time.After(m.timeout):
		return "", &models.CaptchaError{Reason: models.CaptchaManualTimeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pending lists challenges currently waiting on an operator.
func (m *ManualOverride) Pending() []*models.CaptchaChallenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenges := make([]*models.CaptchaChallenge, 0, len(m.pending))
	for _, p := range m.pending {
		challenges = append(challenges, p.challenge)
	}
	return challenges
}

// Answer resumes the query waiting on the given challenge.
func (m *ManualOverride) Answer(id, answer string) error {
	if !ValidAnswer(answer) {
		return fmt.Errorf("malformed captcha answer")
	}

	m.mu.Lock()
	p, ok := m.pending[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending challenge %s", id)
	}

	select {
	case p.answerCh <- answer:
		log.Printf("Captcha %s: answered by operator", id)
		return nil
	default:
		return fmt.Errorf("challenge %s already answered", id)
	}
}

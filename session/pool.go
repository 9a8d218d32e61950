// Package session manages the bounded pool of browser sessions used to
// talk to the court portal. Acquiring blocks when the pool is
// exhausted; that blocking is the service's backpressure against the
// target site.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dhc_scraper/config"
	"dhc_scraper/models"
	"dhc_scraper/retry"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusFailed  Status = "failed"
)

// Conn is the underlying browser state owned by a session.
type Conn interface {
	Close() error
}

// Factory creates a fresh connection for a new session.
type Factory func(ctx context.Context) (Conn, error)

// Session is one cookie-backed interaction context with the portal.
// It serves exactly one query at a time; the pool enforces that.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn     Conn
	status   Status
	minDelay time.Duration

	mu          sync.Mutex
	lastUsed    time.Time
	lastRequest time.Time
}

func (s *Session) Conn() Conn     { return s.conn }
func (s *Session) Status() Status { return s.status }

// Throttle enforces the minimum inter-request delay on this session.
// Callers that come back too fast are delayed, never rejected.
func (s *Session) Throttle(ctx context.Context) error {
	s.mu.Lock()
	wait := s.minDelay - time.Since(s.lastRequest)
	s.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	s.mu.Lock()
	s.lastRequest = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastUsed)
}

func (s *Session) destroy(status Status) {
	s.status = status
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			log.Printf("Session %s: close error: %v", s.ID, err)
		}
		s.conn = nil
	}
}

// Pool is a fixed-size session pool. Slots travel through a buffered
// channel; a nil slot means "create on demand".
type Pool struct {
	cfg     config.SessionConfig
	policy  retry.Policy
	factory Factory
	slots   chan *Session

	mu     sync.Mutex
	closed bool
}

func NewPool(cfg config.SessionConfig, policy retry.Policy, factory Factory) *Pool {
	slots := make(chan *Session, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		slots <- nil
	}
	return &Pool{
		cfg:     cfg,
		policy:  policy,
		factory: factory,
		slots:   slots,
	}
}

// Acquire returns an active session, creating one lazily. It blocks
// while the pool is exhausted and honors ctx cancellation. Creation
// failures after the retry budget surface as SessionError.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s := <-p.slots:
		if s != nil && s.status == StatusActive && s.idleFor() < p.cfg.IdleTTL {
			s.touch()
			return s, nil
		}
		if s != nil {
			log.Printf("Session %s: expired, recreating", s.ID)
			s.destroy(StatusExpired)
		}
		ns, err := p.create(ctx)
		if err != nil {
			// Hand the slot back so the pool never shrinks.
			p.slots <- nil
			return nil, &models.SessionError{Op: "acquire", Err: err}
		}
		return ns, nil
	}
}

func (p *Pool) create(ctx context.Context) (*Session, error) {
	var conn Conn
	err := p.policy.Do(ctx, "create session", func() error {
		var err error
		conn, err = p.factory(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		conn:      conn,
		status:    StatusActive,
		minDelay:  p.cfg.RequestDelay,
		lastUsed:  time.Now(),
	}
	log.Printf("Session %s: created", s.ID)
	return s, nil
}

// Release returns a session for reuse. State (cookies) is preserved.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	s.touch()
	p.put(s)
}

// Invalidate destroys the session's underlying state; the next Acquire
// on this slot creates a fresh one. Use for sessions the portal has
// gone stale on, or queries canceled mid-submission.
func (p *Pool) Invalidate(s *Session) {
	if s == nil {
		return
	}
	log.Printf("Session %s: invalidated", s.ID)
	s.destroy(StatusFailed)
	p.put(nil)
}

func (p *Pool) put(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if s != nil {
			s.destroy(StatusExpired)
		}
		return
	}
	p.slots <- s
}

// SweepIdle destroys sessions idle past the TTL. Called periodically by
// the maintenance scheduler; only touches sessions currently parked in
// the pool.
func (p *Pool) SweepIdle() int {
	swept := 0
	for i := 0; i < cap(p.slots); i++ {
		select {
		case s := <-p.slots:
			if s != nil && s.idleFor() >= p.cfg.IdleTTL {
				log.Printf("Session %s: idle expired", s.ID)
				s.destroy(StatusExpired)
				s = nil
				swept++
			}
			p.slots <- s
		default:
			return swept
		}
	}
	return swept
}

// Close destroys all parked sessions. In-flight sessions are destroyed
// as they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.slots:
			if s != nil {
				s.destroy(StatusExpired)
			}
		default:
			return
		}
	}
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"dhc_scraper/config"
)

type recordingPurger struct {
	calls   int
	cutoff  time.Time
	failErr error
}

func (p *recordingPurger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	p.calls++
	p.cutoff = cutoff
	if p.failErr != nil {
		return 0, p.failErr
	}
	return 3, nil
}

func TestTriggerNow_PurgesExpiredAuditRows(t *testing.T) {
	cfg := &config.Config{
		Cleanup: config.CleanupConfig{LogRetention: 90 * 24 * time.Hour},
	}
	purger := &recordingPurger{}
	sched := New(cfg, nil, nil, purger)

	before := time.Now().Add(-cfg.Cleanup.LogRetention)
	sched.TriggerNow()

	if purger.calls != 1 {
		t.Fatalf("expected one purge call, got %d", purger.calls)
	}
	if purger.cutoff.Before(before) || purger.cutoff.After(time.Now()) {
		t.Fatalf("cutoff %s not within the retention window", purger.cutoff)
	}
}

func TestTriggerNow_NoRetentionKeepsLogForever(t *testing.T) {
	cfg := &config.Config{Cleanup: config.CleanupConfig{}}
	purger := &recordingPurger{}
	sched := New(cfg, nil, nil, purger)

	sched.TriggerNow()

	if purger.calls != 0 {
		t.Fatalf("expected no purge without a retention window, got %d calls", purger.calls)
	}
}

func TestTriggerNow_PurgeErrorIsSwallowed(t *testing.T) {
	cfg := &config.Config{
		Cleanup: config.CleanupConfig{LogRetention: 24 * time.Hour},
	}
	purger := &recordingPurger{failErr: errors.New("database is locked")}
	sched := New(cfg, nil, nil, purger)

	// Must not panic; maintenance carries on next cycle.
	sched.TriggerNow()

	if purger.calls != 1 {
		t.Fatalf("expected the purge to be attempted, got %d calls", purger.calls)
	}
}

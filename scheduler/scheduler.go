package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dhc_scraper/config"
	"dhc_scraper/services"
	"dhc_scraper/session"
)

// LogPurger trims the audit log down to the retention window.
// Satisfied by both query stores.
type LogPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs periodic maintenance: expiring idle browser sessions,
// pruning the document cache and purging expired audit rows.
type Scheduler struct {
	cfg    *config.Config
	docs   *services.DocumentService
	pool   *session.Pool
	purger LogPurger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg *config.Config, docs *services.DocumentService, pool *session.Pool, purger LogPurger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		docs:   docs,
		pool:   pool,
		purger: purger,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cleanup.Cron != "" {
		log.Printf("Starting maintenance with cron: %s", s.cfg.Cleanup.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cleanup.Cron, func() {
			s.runMaintenance()
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Cleanup.Interval > 0 {
		log.Printf("Starting maintenance with interval: %s", s.cfg.Cleanup.Interval)
		s.ticker = time.NewTicker(s.cfg.Cleanup.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runMaintenance()
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No maintenance schedule configured")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) TriggerNow() {
	s.runMaintenance()
}

func (s *Scheduler) runMaintenance() {
	if s.pool != nil {
		if swept := s.pool.SweepIdle(); swept > 0 {
			log.Printf("Maintenance: expired %d idle sessions", swept)
		}
	}
	if s.docs != nil {
		removed, err := s.docs.CleanupOlderThan(s.cfg.Cleanup.DocMaxAge)
		if err != nil {
			log.Printf("Maintenance: document cleanup error: %v", err)
		} else if removed > 0 {
			log.Printf("Maintenance: removed %d cached documents", removed)
		}
	}
	if s.purger != nil && s.cfg.Cleanup.LogRetention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().Add(-s.cfg.Cleanup.LogRetention)
		purged, err := s.purger.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			log.Printf("Maintenance: audit log purge error: %v", err)
		} else if purged > 0 {
			log.Printf("Maintenance: purged %d audit rows older than %s", purged, cutoff.Format(time.RFC3339))
		}
	}
}

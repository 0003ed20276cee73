package service

import (
	"context"
	"log"
	"sync"
	"time"

	"school-inventory-api/internal/repository"
)

// RetentionConfig holds configuration for the activity-log retention sweep.
type RetentionConfig struct {
	// MaxAge is the age after which activity entries are pruned.
	MaxAge time.Duration

	// SweepInterval is how often the prune runs.
	SweepInterval time.Duration
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxAge:        90 * 24 * time.Hour,
		SweepInterval: 24 * time.Hour,
	}
}

// RetentionScheduler periodically prunes old activity-log entries. It only
// touches the audit trail; item and request rows are never swept.
type RetentionScheduler struct {
	activity repository.ActivityRepository
	config   RetentionConfig
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
	mu       sync.Mutex
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(activity repository.ActivityRepository, config RetentionConfig) *RetentionScheduler {
	if config.MaxAge == 0 {
		config.MaxAge = 90 * 24 * time.Hour
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = 24 * time.Hour
	}

	return &RetentionScheduler{
		activity: activity,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.config.SweepInterval)
	s.mu.Unlock()

	log.Printf("[RetentionScheduler] Started - Interval: %v, MaxAge: %v",
		s.config.SweepInterval, s.config.MaxAge)

	go s.run()
}

func (s *RetentionScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			log.Printf("[RetentionScheduler] Stopped")
			return
		}
	}
}

func (s *RetentionScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.activity.PruneActivity(ctx, s.config.MaxAge)
	if err != nil {
		log.Printf("[RetentionScheduler] Error during sweep: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[RetentionScheduler] Pruned %d activity entries", deleted)
	}
}

// Stop stops the scheduler.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.running = false
	})
}

// RunNow triggers an immediate sweep.
func (s *RetentionScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return s.activity.PruneActivity(ctx, s.config.MaxAge)
}

package services

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

const (
	ingestSchedule  = "@every 12h"
	cleanupSchedule = "@every 24h"
)

// Scheduler drives the two background jobs: the full ingestion run every 12
// hours and an independent retention cleanup once a day. Jobs run
// sequentially within themselves; request serving never goes through here.
type Scheduler struct {
	cron     *cron.Cron
	ingester *Ingester

	mu      sync.Mutex
	running bool
}

func NewScheduler(ingester *Ingester) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ingester: ingester,
	}
}

// Start registers the jobs and starts the cron loop. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if len(s.cron.Entries()) > 0 {
		// Restart after Stop: entries are already registered.
		s.cron.Start()
		s.running = true
		return nil
	}

	if _, err := s.cron.AddFunc(ingestSchedule, func() {
		s.ingester.FetchAll("")
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(cleanupSchedule, func() {
		log.Println("[Scheduler] Running retention cleanup...")
		deleted, err := s.ingester.Cleanup()
		if err != nil {
			log.Printf("[Scheduler] Cleanup failed: %v", err)
			return
		}
		log.Printf("[Scheduler] Cleanup finished. Deleted %d old records.", deleted)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	log.Println("[Scheduler] Background scheduler started.")
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Println("[Scheduler] Background scheduler stopped.")
}

// Running reports whether the scheduler has been started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Package scheduler drives the tracker's periodic work.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/logger"
)

// Jobs are the callbacks the scheduler runs. Both must return quickly; the
// tracker only enqueues work from them.
type Jobs struct {
	Tick        func()
	Maintenance func()
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       config.SchedulerConfig
	log       *logger.Logger
}

// New creates a new scheduler instance running in loc.
func New(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) *Scheduler {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		cfg:       cfg,
		log:       log.With("component", "scheduler"),
	}
}

// Start registers the jobs and begins running them in the background. The
// tick runs once right away.
func (s *Scheduler) Start(jobs Jobs) error {
	if jobs.Tick != nil {
		if _, err := s.scheduler.Every(s.cfg.TickInterval).Do(s.guard("tick", jobs.Tick)); err != nil {
			return fmt.Errorf("schedule tick: %w", err)
		}
	}
	if jobs.Maintenance != nil {
		_, err := s.scheduler.Every(1).Day().At(s.cfg.MaintenanceAt).WaitForSchedule().
			Do(s.guard("maintenance", jobs.Maintenance))
		if err != nil {
			return fmt.Errorf("schedule maintenance at %q: %w", s.cfg.MaintenanceAt, err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "tick", s.cfg.TickInterval, "maintenance_at", s.cfg.MaintenanceAt)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.log.Info("scheduler stopped")
}

// guard keeps a panicking job from taking the scheduler down.
func (s *Scheduler) guard(name string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled job panicked", "job", name, "panic", r)
			}
		}()
		fn()
	}
}

package engine

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs the engine's periodic jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler creates a stopped scheduler running in UTC
func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleInterval schedules a job to run at regular intervals. A run that is
// still busy when the next tick fires makes that tick a no-op.
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func()) error {
	_, err := s.scheduler.Every(every).Tag(tag).SingletonMode().Do(job)
	return err
}

// Reschedule replaces the job registered under tag
func (s *Scheduler) Reschedule(tag string, every time.Duration, job func()) error {
	_ = s.scheduler.RemoveByTag(tag)
	return s.ScheduleInterval(tag, every, job)
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// IsRunning reports whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}

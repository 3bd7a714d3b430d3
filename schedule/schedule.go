// Package schedule runs the pipeline on a monthly trigger. The one-shot
// `run` command remains available for external schedulers (cron); this is
// the built-in alternative for `serve` deployments.
package schedule

import (
	"context"
	"log"
	"time"
)

// Job is the work the scheduler triggers. Errors are logged, not fatal; the
// next run stays scheduled.
type Job func(ctx context.Context) error

// Scheduler triggers a job once a month at a fixed day and hour.
type Scheduler struct {
	job      Job
	day      int
	hour     int
	loc      *time.Location
	stopChan chan struct{}
}

// New creates a scheduler. day is the day of month (clamped to the month's
// length), hour the local hour of day.
func New(job Job, day, hour int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		job:      job,
		day:      day,
		hour:     hour,
		loc:      loc,
		stopChan: make(chan struct{}),
	}
}

// NextRun returns the first trigger time strictly after the given instant.
// A day beyond the month's length clamps to its last day, so "31" means
// "last day of the month" in February.
func NextRun(after time.Time, day, hour int, loc *time.Location) time.Time {
	after = after.In(loc)

	candidate := atDay(after.Year(), after.Month(), day, hour, loc)
	if candidate.After(after) {
		return candidate
	}

	y, m := after.Year(), after.Month()
	m++
	if m > time.December {
		m = time.January
		y++
	}
	return atDay(y, m, day, hour, loc)
}

// atDay builds the trigger instant within one month, clamping the day.
func atDay(year int, month time.Month, day, hour int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

// Run executes the job immediately, then once per month until the context is
// cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Println("Scheduler starting")

	s.runJob(ctx)

	for {
		next := NextRun(time.Now(), s.day, s.hour, s.loc)
		log.Printf("INFO: Next run scheduled for %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("Scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-s.stopChan:
			timer.Stop()
			log.Println("Scheduler stopping")
			return nil
		case <-timer.C:
			s.runJob(ctx)
		}
	}
}

// Stop signals the scheduler to stop gracefully.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runJob(ctx context.Context) {
	if err := s.job(ctx); err != nil {
		log.Printf("ERROR: Scheduled run failed: %v", err)
	}
}

// Package scheduler runs the bot's periodic maintenance jobs, such as the
// inactivity sweep that shrinks conversation context for idle customers.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arcosum/arcobot/internal/store"
)

// DefaultInactivityWindow is how long a customer can stay silent before
// being marked inactive.
const DefaultInactivityWindow = 24 * time.Hour

// DefaultSweepSpec runs the inactivity sweep at the top of every hour.
const DefaultSweepSpec = "0 * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler with the standard
// 5-field parser and panic recovery around jobs.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", expr, err)
	}
	return nil
}

// AddInactivitySweep schedules the job that flags customers idle longer
// than window as inactive, which narrows their AI history context.
func (s *Scheduler) AddInactivitySweep(st store.Store, spec string, window time.Duration) error {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	return s.AddJob(spec, func() {
		cutoff := time.Now().Add(-window)
		n, err := st.MarkInactiveBefore(cutoff)
		if err != nil {
			slog.Error("Scheduler inactivity sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("Scheduler inactivity sweep succeeded", "marked", n, "cutoff", cutoff)
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

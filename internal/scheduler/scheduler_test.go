package scheduler

import (
	"testing"
	"time"

	"github.com/arcosum/arcobot/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron spec", func() {}); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestAddInactivitySweep(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	st := store.NewInMemoryStore()
	if err := s.AddInactivitySweep(st, "", DefaultInactivityWindow); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := s.AddInactivitySweep(st, "*/30 * * * *", 48*time.Hour); err != nil {
		t.Errorf("expected no error with custom spec, got %v", err)
	}
}

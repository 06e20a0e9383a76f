package scheduler

import (
	"strings"
	"testing"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("review-sweep", "*/10 * * * *", func() {}); err != nil {
		t.Errorf("expected no error adding job, got %v", err)
	}
	err := s.AddJob("broken", "not a cron expression", func() {})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	// The failure names the job so the offending schedule is identifiable.
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected job name in error, got %q", err.Error())
	}
}

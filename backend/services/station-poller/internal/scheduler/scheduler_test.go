package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitRun(t *testing.T, runs <-chan int) int {
	t.Helper()
	select {
	case n := <-runs:
		return n
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for run")
	}
	return 0
}

func TestRunStopsAfterDuration(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	runner := RunnerFunc(func(context.Context) (*models.RunSummary, error) {
		calls++
		clock.Advance(time.Hour)
		return &models.RunSummary{Stations: 10, UtilizationRecords: 25}, nil
	})
	s := New(runner, Config{Duration: 3 * time.Hour, Interval: time.Hour}, zap.NewNop())
	s.now = clock.Now

	stats := s.Run(context.Background())
	if calls != 3 {
		t.Fatalf("expected 3 runs, got %d", calls)
	}
	if stats.ExtractionCount != 3 || stats.TotalStations != 10 || stats.TotalUtilizationRecords != 75 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunSurvivesFailuresAndPanics(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	runner := RunnerFunc(func(context.Context) (*models.RunSummary, error) {
		calls++
		clock.Advance(time.Hour)
		switch calls {
		case 1:
			panic("boom")
		case 2:
			return nil, errors.New("network failure")
		}
		return &models.RunSummary{Stations: 2, UtilizationRecords: 4, ValidationIssues: []string{"x"}}, nil
	})
	s := New(runner, Config{Duration: 4 * time.Hour, Interval: time.Hour}, zap.NewNop())
	s.now = clock.Now

	stats := s.Run(context.Background())
	if stats.ErrorCount != 2 {
		t.Fatalf("expected 2 errors, got %+v", stats)
	}
	if stats.ExtractionCount != 2 || stats.ValidationIssueCount != 2 {
		t.Fatalf("expected 2 successful runs with issues, got %+v", stats)
	}
	if s.Latest() == nil || s.Latest().Stations != 2 {
		t.Fatalf("expected latest summary to be kept")
	}
}

func TestSingleModeRunsOnce(t *testing.T) {
	calls := 0
	var seen []*models.RunSummary
	runner := RunnerFunc(func(context.Context) (*models.RunSummary, error) {
		calls++
		return &models.RunSummary{RunID: "r1"}, nil
	})
	s := New(runner, Config{Single: true, Interval: time.Hour}, zap.NewNop())
	s.OnRun(func(summary *models.RunSummary) { seen = append(seen, summary) })

	s.Run(context.Background())
	if calls != 1 {
		t.Fatalf("expected 1 run, got %d", calls)
	}
	if len(seen) != 1 || seen[0].RunID != "r1" {
		t.Fatalf("expected callback with r1, got %v", seen)
	}
}

func TestTriggerRunsImmediatelyAndCancelStops(t *testing.T) {
	runs := make(chan int, 10)
	calls := 0
	runner := RunnerFunc(func(context.Context) (*models.RunSummary, error) {
		calls++
		runs <- calls
		return &models.RunSummary{}, nil
	})
	s := New(runner, Config{Interval: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Stats, 1)
	go func() { done <- s.Run(ctx) }()

	if n := waitRun(t, runs); n != 1 {
		t.Fatalf("expected first run, got %d", n)
	}
	if !s.Trigger() {
		t.Fatalf("expected trigger to be accepted")
	}
	if n := waitRun(t, runs); n != 2 {
		t.Fatalf("expected triggered run, got %d", n)
	}

	cancel()
	select {
	case stats := <-done:
		if stats.ExtractionCount != 2 {
			t.Fatalf("expected 2 extractions, got %+v", stats)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
}

func TestValidationIssueCountTracksFailedRuns(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	summaries := []*models.RunSummary{
		{RunID: "warnings", ValidationPassed: true, ValidationIssues: []string{"WARNING: 1 duplicate station id(s)"}},
		{RunID: "failed", ValidationPassed: false, ValidationIssues: []string{"CRITICAL: empty station_id"}},
		{RunID: "clean", ValidationPassed: true},
	}
	calls := 0
	runner := RunnerFunc(func(context.Context) (*models.RunSummary, error) {
		summary := summaries[calls]
		calls++
		clock.Advance(time.Hour)
		return summary, nil
	})
	var seen []string
	s := New(runner, Config{Duration: 3 * time.Hour, Interval: time.Hour}, zap.NewNop())
	s.now = clock.Now
	s.OnRun(func(summary *models.RunSummary) { seen = append(seen, summary.RunID) })
	s.OnRun(func(summary *models.RunSummary) { seen = append(seen, "+"+summary.RunID) })

	stats := s.Run(context.Background())
	if stats.ExtractionCount != 3 {
		t.Fatalf("expected 3 extractions, got %+v", stats)
	}
	if stats.ValidationIssueCount != 1 {
		t.Fatalf("expected only the failed run counted, got %+v", stats)
	}
	if len(seen) != 6 || seen[0] != "warnings" || seen[1] != "+warnings" || seen[5] != "+clean" {
		t.Fatalf("expected both callbacks per run in order, got %v", seen)
	}
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
)

// Runner performs one pipeline invocation.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (*models.RunSummary, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (*models.RunSummary, error) { return f(ctx) }

// Config controls the cadence. Duration <= 0 runs until the context is cancelled.
type Config struct {
	Single   bool
	Duration time.Duration
	Interval time.Duration
}

// Stats are the counters kept across invocations. ValidationIssueCount counts runs whose
// validation did not pass; warnings alone do not count.
type Stats struct {
	ExtractionCount         int `json:"extraction_count"`
	TotalStations           int `json:"total_stations"`
	TotalUtilizationRecords int `json:"total_utilization_records"`
	ValidationIssueCount    int `json:"validation_issue_count"`
	ErrorCount              int `json:"error_count"`
}

// Scheduler repeats the pipeline at a fixed cadence, one invocation at a time.
type Scheduler struct {
	runner  Runner
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	trigger chan struct{}

	mu     sync.RWMutex
	stats  Stats
	latest *models.RunSummary
	onRun  []func(*models.RunSummary)
}

// New returns scheduler.
func New(runner Runner, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
}

// OnRun registers a callback for every successful run.
func (s *Scheduler) OnRun(fn func(*models.RunSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRun = append(s.onRun, fn)
}

// Trigger asks for an immediate run. It reports false when a request is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Latest returns the summary of the last successful run, if any.
func (s *Scheduler) Latest() *models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SetLatest seeds the last known summary, e.g. from persisted metadata.
func (s *Scheduler) SetLatest(summary *models.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = summary
}

// Run invokes the pipeline until the configured duration elapses or ctx is cancelled. A failing
// or panicking invocation is counted and the loop carries on.
func (s *Scheduler) Run(ctx context.Context) Stats {
	start := s.now()
	var end time.Time
	if s.cfg.Duration > 0 {
		end = start.Add(s.cfg.Duration)
	}
	s.logger.Info("scheduler started",
		zap.Bool("single", s.cfg.Single),
		zap.Duration("duration", s.cfg.Duration),
		zap.Duration("interval", s.cfg.Interval),
	)

loop:
	for {
		runStart := s.now()
		s.runOnce(ctx)
		if s.cfg.Single || ctx.Err() != nil {
			break
		}

		wait := s.cfg.Interval - s.now().Sub(runStart)
		if wait < 0 {
			wait = 0
		}
		if !end.IsZero() && !s.now().Add(wait).Before(end) {
			break
		}
		if wait == 0 {
			continue
		}

		s.logger.Info("waiting for next run", zap.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			break loop
		case <-s.trigger:
			timer.Stop()
			s.logger.Info("manual run requested")
		case <-timer.C:
		}
	}

	stats := s.Stats()
	s.logger.Info("scheduler finished",
		zap.Int("extraction_count", stats.ExtractionCount),
		zap.Int("total_stations", stats.TotalStations),
		zap.Int("total_utilization_records", stats.TotalUtilizationRecords),
		zap.Int("validation_issue_count", stats.ValidationIssueCount),
		zap.Int("error_count", stats.ErrorCount),
	)
	return stats
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.invoke(ctx)

	s.mu.Lock()
	if err != nil {
		s.stats.ErrorCount++
		s.mu.Unlock()
		s.logger.Error("run failed", zap.Error(err))
		return
	}
	s.stats.ExtractionCount++
	s.stats.TotalStations = summary.Stations
	s.stats.TotalUtilizationRecords += summary.UtilizationRecords
	if !summary.ValidationPassed {
		s.stats.ValidationIssueCount++
		s.logger.Warn("validation failed", zap.Int("extraction", s.stats.ExtractionCount), zap.Int("issues", len(summary.ValidationIssues)))
	}
	s.latest = summary
	callbacks := make([]func(*models.RunSummary), len(s.onRun))
	copy(callbacks, s.onRun)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(summary)
	}
}

func (s *Scheduler) invoke(ctx context.Context) (summary *models.RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	summary, err = s.runner.Run(ctx)
	if err == nil && summary == nil {
		err = fmt.Errorf("run returned no summary")
	}
	return summary, err
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/clients"
	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/repository"
	"chargewatch/backend/services/station-poller/internal/table"
	"chargewatch/backend/services/station-poller/internal/validation"
)

// Extractor fetches the current upstream station list.
type Extractor interface {
	Extract(ctx context.Context) (*clients.Extraction, error)
}

// TableStore persists the three tables and the run metadata.
type TableStore interface {
	Files() repository.Files
	Save(name string, incoming *table.Table, key []string) (repository.SaveResult, error)
	WriteMetadata(summary *models.RunSummary) error
}

// Sink receives the output of every successful run. Failures are logged, never fatal.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap models.Snapshot) error
}

// Recorder observes run outcomes.
type Recorder interface {
	RecordRun(summary *models.RunSummary, err error, took time.Duration)
}

// Pipeline runs extract, transform, aggregate, validate and persist in sequence.
type Pipeline struct {
	extractor   Extractor
	transformer *Transformer
	validator   *validation.Validator
	store       TableStore
	sinks       []Sink
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// NewPipeline returns pipeline.
func NewPipeline(extractor Extractor, transformer *Transformer, validator *validation.Validator, store TableStore, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor:   extractor,
		transformer: transformer,
		validator:   validator,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// AddSink registers an optional output.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// SetRecorder registers a run observer.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// Run performs one poll. An extraction failure is returned and nothing is persisted; everything
// after extraction degrades instead of failing.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	started := p.now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	extraction, err := p.extractor.Extract(ctx)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		p.record(nil, err, started)
		return nil, err
	}

	stations := p.transformer.ToStations(extraction.Stations)
	utilization := p.transformer.ToUtilization(extraction.Stations, started)
	hourly := Aggregate(utilization)

	stationsTbl := models.StationsTable(stations)
	utilizationTbl := models.UtilizationTable(utilization)
	hourlyTbl := models.HourlyTable(hourly)

	result := p.validator.Validate(stationsTbl, utilizationTbl, hourlyTbl)
	validation.Log(logger, result)

	summary := &models.RunSummary{
		RunID:            runID,
		StartedAt:        started,
		Skipped:          extraction.Skipped,
		PayloadDigest:    extraction.Digest,
		ValidationPassed: result.Passed,
		ValidationIssues: result.Issues,
	}
	summary.Summarize(stations, utilization, hourly)
	logger.Info("current status",
		zap.Int("available", summary.Available),
		zap.Int("occupied", summary.Occupied),
		zap.Int("out_of_order", summary.OutOfOrder),
	)

	files := p.store.Files()
	saves := []struct {
		name string
		tbl  *table.Table
		key  []string
	}{
		{files.Stations, stationsTbl, models.StationKey},
		{files.Utilization, utilizationTbl, models.UtilizationKey},
		{files.Hourly, hourlyTbl, models.HourlyKey},
	}
	for _, s := range saves {
		res, err := p.store.Save(s.name, s.tbl, s.key)
		if err != nil {
			logger.Error("saving table failed", zap.String("file", s.name), zap.Error(err))
			summary.Degraded = append(summary.Degraded, s.name)
			continue
		}
		if res.Degraded {
			summary.Degraded = append(summary.Degraded, s.name)
		}
	}

	summary.FinishedAt = p.now()
	snap := models.Snapshot{Summary: summary, Stations: stations, Utilization: utilization, Hourly: hourly}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			logger.Warn("sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
			summary.Degraded = append(summary.Degraded, sink.Name())
		}
	}
	if err := p.store.WriteMetadata(summary); err != nil {
		logger.Warn("writing run metadata failed", zap.Error(err))
	}

	logger.Info("run finished",
		zap.Int("stations", summary.Stations),
		zap.Int("utilization_records", summary.UtilizationRecords),
		zap.Int("hourly_records", summary.HourlyRecords),
		zap.Bool("validation_passed", summary.ValidationPassed),
		zap.Strings("degraded", summary.Degraded),
		zap.Duration("took", summary.FinishedAt.Sub(started)),
	)
	p.record(summary, nil, started)
	return summary, nil
}

func (p *Pipeline) record(summary *models.RunSummary, err error, started time.Time) {
	if p.recorder == nil {
		return
	}
	p.recorder.RecordRun(summary, err, p.now().Sub(started))
}

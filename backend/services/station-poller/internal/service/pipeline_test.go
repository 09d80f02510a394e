package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/clients"
	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/repository"
	"chargewatch/backend/services/station-poller/internal/validation"
)

type fakeExtractor struct {
	extraction *clients.Extraction
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(context.Context) (*clients.Extraction, error) {
	f.calls++
	return f.extraction, f.err
}

type fakeSink struct {
	name  string
	err   error
	snaps []models.Snapshot
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(_ context.Context, snap models.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return f.err
}

type fakeRecorder struct {
	summaries []*models.RunSummary
	errs      []error
}

func (f *fakeRecorder) RecordRun(summary *models.RunSummary, err error, _ time.Duration) {
	f.summaries = append(f.summaries, summary)
	f.errs = append(f.errs, err)
}

func newTestPipeline(t *testing.T, ext Extractor, at time.Time) (*Pipeline, *repository.CSVStore) {
	t.Helper()
	store := repository.NewCSVStore(t.TempDir(), repository.DefaultFiles(), zap.NewNop())
	p := NewPipeline(ext, NewTransformer("Eviny", zap.NewNop()), validation.NewValidator(false), store, zap.NewNop())
	p.now = func() time.Time { return at }
	return p, store
}

func sampleExtraction(t *testing.T) *clients.Extraction {
	raw := decodeStations(t, `[
		{"id":"S1","name":"Kaien","location":{"lat":60.39,"lng":5.32},"totalConnectors":2,
		 "connectors":[{"id":"C1","type":"CCS","status":"AVAILABLE"},{"id":"C2","type":"Type2","status":"OCCUPIED"}]},
		{"id":"S2","name":"Torget","location":{"lat":60.4,"lng":5.33},
		 "connectionTypes":{"CHAdeMO":[{"id":"C3","status":"UNAVAILABLE"}]}}]`)
	return &clients.Extraction{Stations: raw, Digest: "abc", Attempts: 1}
}

func TestPipelineRunPersistsAllTables(t *testing.T) {
	at := time.Date(2024, 5, 1, 13, 47, 0, 0, time.UTC)
	ext := &fakeExtractor{extraction: sampleExtraction(t)}
	p, store := newTestPipeline(t, ext, at)
	sink := &fakeSink{name: "memory"}
	rec := &fakeRecorder{}
	p.AddSink(sink)
	p.SetRecorder(rec)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, 2, summary.Stations)
	require.Equal(t, 3, summary.UtilizationRecords)
	require.Equal(t, 2, summary.HourlyRecords)
	require.Equal(t, 1, summary.Available)
	require.Equal(t, 1, summary.Occupied)
	require.Equal(t, 1, summary.OutOfOrder)
	require.True(t, summary.ValidationPassed)
	require.Empty(t, summary.Degraded)
	require.Equal(t, "abc", summary.PayloadDigest)
	require.Equal(t, map[string]int{models.StationAvailable: 1, models.StationOccupied: 1}, summary.StationStatusCounts)

	stations, err := store.LoadStations()
	require.NoError(t, err)
	require.Len(t, stations, 2)
	records, err := store.LoadUtilization()
	require.NoError(t, err)
	require.Len(t, records, 3)
	hourly, err := store.LoadHourly()
	require.NoError(t, err)
	require.Len(t, hourly, 2)

	meta, err := store.LoadMetadata()
	require.NoError(t, err)
	require.Equal(t, summary.RunID, meta.RunID)

	require.Len(t, sink.snaps, 1)
	require.Len(t, sink.snaps[0].Utilization, 3)
	require.Len(t, rec.summaries, 1)
	require.NoError(t, rec.errs[0])
}

func TestPipelineRepeatedRunsAreIdempotent(t *testing.T) {
	at := time.Date(2024, 5, 1, 13, 47, 0, 0, time.UTC)
	ext := &fakeExtractor{extraction: sampleExtraction(t)}
	p, store := newTestPipeline(t, ext, at)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	records, err := store.LoadUtilization()
	require.NoError(t, err)
	require.Len(t, records, 3)

	// a later poll within the same hour adds observations and replaces the hourly rows
	p.now = func() time.Time { return at.Add(5 * time.Minute) }
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	records, err = store.LoadUtilization()
	require.NoError(t, err)
	require.Len(t, records, 6)
	hourly, err := store.LoadHourly()
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	stations, err := store.LoadStations()
	require.NoError(t, err)
	require.Len(t, stations, 2)
}

func TestPipelineExtractionFailurePersistsNothing(t *testing.T) {
	failure := &clients.ExtractionError{Kind: clients.ErrNetworkFailure, Attempts: 4, Err: errors.New("status 500")}
	ext := &fakeExtractor{err: failure}
	p, store := newTestPipeline(t, ext, time.Now())
	rec := &fakeRecorder{}
	p.SetRecorder(rec)

	summary, err := p.Run(context.Background())
	require.Nil(t, summary)
	require.ErrorIs(t, err, clients.ErrNetworkFailure)

	entries, readErr := os.ReadDir(store.Dir())
	require.NoError(t, readErr)
	require.Empty(t, entries)
	require.Len(t, rec.errs, 1)
	require.Error(t, rec.errs[0])
}

func TestPipelineSinkFailureDegradesOnly(t *testing.T) {
	ext := &fakeExtractor{extraction: sampleExtraction(t)}
	p, store := newTestPipeline(t, ext, time.Now())
	p.AddSink(&fakeSink{name: "kafka", err: errors.New("broker down")})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"kafka"}, summary.Degraded)

	_, statErr := os.Stat(filepath.Join(store.Dir(), store.Files().Stations))
	require.NoError(t, statErr)
}

func TestPipelineCorruptHistoryIsDegraded(t *testing.T) {
	ext := &fakeExtractor{extraction: sampleExtraction(t)}
	p, store := newTestPipeline(t, ext, time.Now())
	path := filepath.Join(store.Dir(), store.Files().Stations)
	require.NoError(t, os.WriteFile(path, []byte("id,status\n\"broken\n"), 0o644))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{store.Files().Stations}, summary.Degraded)

	stations, err := store.LoadStations()
	require.NoError(t, err)
	require.Len(t, stations, 2)
}

func TestPipelineEmptyExtractionFailsValidation(t *testing.T) {
	ext := &fakeExtractor{extraction: &clients.Extraction{}}
	p, store := newTestPipeline(t, ext, time.Now())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.False(t, summary.ValidationPassed)
	require.Zero(t, summary.Stations)

	_, statErr := os.Stat(filepath.Join(store.Dir(), store.Files().Stations))
	require.True(t, os.IsNotExist(statErr))
}

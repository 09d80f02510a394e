package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/table"
)

// MetadataFile holds the summary of the latest run.
const MetadataFile = "pipeline_metadata.json"

// Files names the table files inside the output directory.
type Files struct {
	Stations    string
	Utilization string
	Hourly      string
}

// DefaultFiles returns the standard file names.
func DefaultFiles() Files {
	return Files{
		Stations:    "charging_stations.csv",
		Utilization: "utilization_data.csv",
		Hourly:      "hourly_utilization.csv",
	}
}

// SaveResult describes one Save call. Degraded is set when prior history could not be merged:
// a file lacking a key column gets the incoming rows appended without deduplication, an unreadable
// file is overwritten with the incoming rows only.
type SaveResult struct {
	Path     string
	Written  int
	Total    int
	Degraded bool
}

// CSVStore keeps each table in one CSV file and merges new rows on the table's key.
// Callers must serialize Save calls on the same file.
type CSVStore struct {
	dir    string
	files  Files
	logger *zap.Logger
}

// NewCSVStore returns store rooted at dir.
func NewCSVStore(dir string, files Files, logger *zap.Logger) *CSVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultFiles()
	if files.Stations == "" {
		files.Stations = defaults.Stations
	}
	if files.Utilization == "" {
		files.Utilization = defaults.Utilization
	}
	if files.Hourly == "" {
		files.Hourly = defaults.Hourly
	}
	return &CSVStore{dir: dir, files: files, logger: logger}
}

// Files returns the configured file names.
func (s *CSVStore) Files() Files {
	return s.files
}

// Dir returns the output directory.
func (s *CSVStore) Dir() string {
	return s.dir
}

// Save merges incoming into the file called name, deduplicating on key with incoming rows winning.
// An empty incoming table is a no-op. Only a failure to write the result is returned as an error.
func (s *CSVStore) Save(name string, incoming *table.Table, key []string) (SaveResult, error) {
	path := filepath.Join(s.dir, name)
	res := SaveResult{Path: path}
	if incoming.Empty() {
		s.logger.Info("no rows to save", zap.String("path", path))
		return res, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return res, fmt.Errorf("repository: create output dir: %w", err)
	}

	merged, degraded, err := s.merge(path, incoming, key)
	if err != nil {
		s.logger.Warn("merge with existing data failed, overwriting with new rows",
			zap.String("path", path),
			zap.Error(err),
		)
		merged = incoming
		degraded = true
	}
	res.Degraded = degraded

	if err := writeAtomic(path, merged); err != nil {
		return res, err
	}
	res.Written = incoming.Len()
	res.Total = merged.Len()
	s.logger.Info("data saved",
		zap.String("path", path),
		zap.Int("written", res.Written),
		zap.Int("total", res.Total),
	)
	return res, nil
}

func (s *CSVStore) merge(path string, incoming *table.Table, key []string) (*table.Table, bool, error) {
	existing, err := readTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		return incoming, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	merged, err := table.Merge(existing, incoming, key)
	if errors.Is(err, table.ErrMissingKey) {
		s.logger.Warn("key column missing, appending without deduplication",
			zap.String("path", path),
			zap.Error(err),
		)
		return table.Concat(existing, incoming), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return merged, false, nil
}

func readTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.ReadCSV(f)
}

func writeAtomic(path string, t *table.Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("repository: create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if err := t.WriteCSV(tmp); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("repository: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("repository: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("repository: replace %s: %w", path, err)
	}
	return nil
}

// LoadStations reads the persisted stations table.
func (s *CSVStore) LoadStations() ([]models.Station, error) {
	t, err := readTable(filepath.Join(s.dir, s.files.Stations))
	if err != nil {
		return nil, err
	}
	return models.StationsFromTable(t)
}

// LoadUtilization reads the persisted utilization table.
func (s *CSVStore) LoadUtilization() ([]models.UtilizationRecord, error) {
	t, err := readTable(filepath.Join(s.dir, s.files.Utilization))
	if err != nil {
		return nil, err
	}
	return models.UtilizationFromTable(t)
}

// LoadHourly reads the persisted hourly table.
func (s *CSVStore) LoadHourly() ([]models.HourlyAggregate, error) {
	t, err := readTable(filepath.Join(s.dir, s.files.Hourly))
	if err != nil {
		return nil, err
	}
	return models.HourlyFromTable(t)
}

type metadataDoc struct {
	Timestamp time.Time `json:"timestamp"`
	*models.RunSummary
}

// WriteMetadata stores the run summary next to the tables.
func (s *CSVStore) WriteMetadata(summary *models.RunSummary) error {
	if summary == nil {
		return errors.New("repository: nil summary")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("repository: create output dir: %w", err)
	}
	ts := summary.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	data, err := json.MarshalIndent(metadataDoc{Timestamp: ts, RunSummary: summary}, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("repository: write metadata: %w", err)
	}
	s.logger.Info("metadata saved", zap.String("path", path))
	return nil
}

// LoadMetadata reads the summary written by the last WriteMetadata.
func (s *CSVStore) LoadMetadata() (*models.RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	doc := metadataDoc{RunSummary: &models.RunSummary{}}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("repository: decode metadata: %w", err)
	}
	return doc.RunSummary, nil
}

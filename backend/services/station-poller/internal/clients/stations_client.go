package clients

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"chargewatch/backend/libs/retry"
	"chargewatch/backend/services/station-poller/internal/models"
)

// DebugDumpFile receives payloads whose top-level shape is not recognized.
const DebugDumpFile = "api_response_debug.json"

// StationsConfig configures the upstream station listing.
type StationsConfig struct {
	URL      string
	Timeout  time.Duration
	Retry    retry.Policy
	DebugDir string
}

// Extraction is the normalized result of one poll.
type Extraction struct {
	Stations []models.RawStation
	Skipped  int
	Digest   string
	Attempts int
}

// StationsClient polls the charging station listing.
type StationsClient struct {
	base   *BaseClient
	cfg    StationsConfig
	logger *zap.Logger
}

// NewStationsClient returns client.
func NewStationsClient(cfg StationsConfig, httpClient HTTPDoer, logger *zap.Logger) *StationsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers := map[string]string{"Accept": "application/json"}
	return &StationsClient{
		base:   NewBaseClient(cfg.URL, httpClient, headers),
		cfg:    cfg,
		logger: logger,
	}
}

// Extract fetches and normalizes the current station list.
func (c *StationsClient) Extract(ctx context.Context) (*Extraction, error) {
	var body []byte
	attempts, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		status, payload, err := c.base.Get(ctx, "", c.cfg.Timeout)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			return &StatusError{Code: status}
		}
		body = payload
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("upstream request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		c.logger.Error("upstream unreachable", zap.Int("attempts", attempts), zap.Error(err))
		return nil, &ExtractionError{Kind: ErrNetworkFailure, Attempts: attempts, Err: err}
	}

	extraction, err := c.decode(body)
	if err != nil {
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			extErr.Attempts = attempts
		}
		return nil, err
	}
	extraction.Attempts = attempts
	c.logger.Info("stations extracted",
		zap.Int("stations", len(extraction.Stations)),
		zap.Int("skipped", extraction.Skipped),
		zap.String("digest", extraction.Digest),
	)
	return extraction, nil
}

func (c *StationsClient) decode(body []byte) (*Extraction, error) {
	var doc json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ExtractionError{Kind: ErrMalformedResponse, Err: err}
	}

	items, ok := stationItems(doc)
	if !ok {
		c.dumpPayload(doc)
		return nil, &ExtractionError{Kind: ErrUnexpectedSchema, Err: errors.New("expected a station list or an object with chargingStations")}
	}

	out := &Extraction{
		Stations: make([]models.RawStation, 0, len(items)),
		Digest:   Fingerprint(body),
	}
	for i, item := range items {
		var station models.RawStation
		if err := json.Unmarshal(item, &station); err != nil {
			c.logger.Warn("skipping undecodable station", zap.Int("index", i), zap.Error(err))
			out.Skipped++
			continue
		}
		normalizeStation(&station)
		out.Stations = append(out.Stations, station)
	}
	return out, nil
}

// stationItems accepts a bare list or {"chargingStations": [...]}.
func stationItems(doc json.RawMessage) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		return items, true
	case '{':
		var envelope struct {
			ChargingStations json.RawMessage `json:"chargingStations"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, false
		}
		list := bytes.TrimSpace(envelope.ChargingStations)
		if len(list) == 0 || list[0] != '[' {
			return nil, false
		}
		if err := json.Unmarshal(list, &items); err != nil {
			return nil, false
		}
		return items, true
	}
	return nil, false
}

// normalizeStation folds the legacy grouping name into connectionTypes and materializes the
// grouping as the connectors list when upstream sent no explicit list.
func normalizeStation(s *models.RawStation) {
	if s.ConnectionTypes == nil && s.ConnectionsTypes != nil {
		s.ConnectionTypes = s.ConnectionsTypes
		s.ConnectionsTypes = nil
	}
	if len(s.Connectors) == 0 && s.ConnectionTypes != nil {
		s.Connectors = s.ConnectionTypes.Flatten()
	}
}

func (c *StationsClient) dumpPayload(doc json.RawMessage) {
	dir := c.cfg.DebugDir
	if dir == "" {
		dir = "."
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(doc)
	}
	path := filepath.Join(dir, DebugDumpFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("debug dump failed", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
		c.logger.Warn("debug dump failed", zap.String("path", path), zap.Error(err))
		return
	}
	c.logger.Warn("unexpected upstream payload saved", zap.String("path", path))
}

// Fingerprint returns the hex BLAKE2b-256 digest of a payload.
func Fingerprint(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

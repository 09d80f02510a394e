package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"chargewatch/backend/services/station-poller/internal/models"
)

const (
	idsKey     = "stations:ids"
	summaryKey = "stations:last_summary"
)

// Client is the subset of go-redis commands the store uses.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// StationStatus is the cached view of one station after a run.
type StationStatus struct {
	models.Station
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps the latest station statuses and run summary.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(stationID string) string {
	return fmt.Sprintf("stations:status:%s", stationID)
}

func (s *Store) Name() string { return "redis" }

// Publish caches every station of the snapshot and the run summary.
func (s *Store) Publish(ctx context.Context, snap models.Snapshot) error {
	var runID string
	updated := time.Now().UTC()
	if snap.Summary != nil {
		runID = snap.Summary.RunID
		if !snap.Summary.FinishedAt.IsZero() {
			updated = snap.Summary.FinishedAt
		}
	}

	ids := make([]interface{}, 0, len(snap.Stations))
	for _, st := range snap.Stations {
		data, err := json.Marshal(StationStatus{Station: st, RunID: runID, UpdatedAt: updated})
		if err != nil {
			return err
		}
		if err := s.client.Set(ctx, s.key(st.ID), data, s.ttl).Err(); err != nil {
			return fmt.Errorf("cache station %s: %w", st.ID, err)
		}
		ids = append(ids, st.ID)
	}
	if len(ids) > 0 {
		if err := s.client.SAdd(ctx, idsKey, ids...).Err(); err != nil {
			return fmt.Errorf("index stations: %w", err)
		}
	}

	if snap.Summary == nil {
		return nil
	}
	data, err := json.Marshal(snap.Summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, summaryKey, data, 0).Err()
}

// Get returns cached station status.
func (s *Store) Get(ctx context.Context, stationID string) (*StationStatus, error) {
	result, err := s.client.Get(ctx, s.key(stationID)).Result()
	if err != nil {
		return nil, err
	}
	var status StationStatus
	if err := json.Unmarshal([]byte(result), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Statuses returns all cached stations ordered by id. Expired entries are skipped.
func (s *Store) Statuses(ctx context.Context) ([]StationStatus, error) {
	ids, err := s.client.SMembers(ctx, idsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]StationStatus, 0, len(ids))
	for _, id := range ids {
		status, err := s.Get(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *status)
	}
	return out, nil
}

// Latest returns the last cached run summary, or nil when none was stored.
func (s *Store) Latest(ctx context.Context) (*models.RunSummary, error) {
	result, err := s.client.Get(ctx, summaryKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary models.RunSummary
	if err := json.Unmarshal([]byte(result), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

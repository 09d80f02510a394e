package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"chargewatch/backend/services/station-poller/internal/models"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	sets   map[string]map[string]struct{}
	failOn string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
		sets:   map[string]map[string]struct{}{},
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if key == f.failOn {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	default:
		f.values[key] = fmt.Sprint(v)
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	for _, m := range members {
		set[fmt.Sprint(m)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return redis.NewStringSliceResult(out, nil)
}

func snapshot() models.Snapshot {
	lat, lng := 60.39, 5.32
	return models.Snapshot{
		Summary: &models.RunSummary{RunID: "run-1", Stations: 2, FinishedAt: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)},
		Stations: []models.Station{
			{ID: "S2", Status: models.StationOccupied, TotalConnectors: 1},
			{ID: "S1", Name: "Kaien", Status: models.StationAvailable, Latitude: &lat, Longitude: &lng, TotalConnectors: 2, AvailableConnectors: 1},
		},
	}
}

func TestPublishCachesStationsAndSummary(t *testing.T) {
	client := newFakeRedis()
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, snapshot()))
	require.Equal(t, time.Hour, client.ttls["stations:status:S1"])

	got, err := store.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, "Kaien", got.Name)
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, 1, got.AvailableConnectors)
	require.Equal(t, 60.39, *got.Latitude)

	statuses, err := store.Statuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, "S1", statuses[0].ID)
	require.Equal(t, "S2", statuses[1].ID)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-1", latest.RunID)
	require.Equal(t, 2, latest.Stations)
}

func TestStatusesSkipsExpiredEntries(t *testing.T) {
	client := newFakeRedis()
	store := NewStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Publish(ctx, snapshot()))

	delete(client.values, "stations:status:S2")
	statuses, err := store.Statuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, "S1", statuses[0].ID)
}

func TestLatestWithoutSummary(t *testing.T) {
	store := NewStore(newFakeRedis(), time.Hour)
	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestPublishReportsWriteFailure(t *testing.T) {
	client := newFakeRedis()
	client.failOn = "stations:status:S2"
	store := NewStore(client, time.Hour)

	err := store.Publish(context.Background(), snapshot())
	require.Error(t, err)
	require.Contains(t, err.Error(), "S2")
	require.Equal(t, "redis", store.Name())
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chargewatch/backend/services/station-poller/internal/models"
)

func utilization(at time.Time, station, connector, status string) models.UtilizationRecord {
	o, a, x := models.StatusFlags(status)
	return models.UtilizationRecord{
		Timestamp:       at,
		HourlyTimestamp: models.TruncateHour(at),
		StationID:       station,
		ConnectorID:     connector,
		Status:          status,
		IsOccupied:      o,
		IsAvailable:     a,
		IsOutOfOrder:    x,
	}
}

func TestAggregateEmpty(t *testing.T) {
	require.Empty(t, Aggregate(nil))
}

func TestAggregateGroupsPerHourAndStation(t *testing.T) {
	first := time.Date(2024, 5, 1, 13, 5, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)
	nextHour := first.Add(time.Hour)

	records := []models.UtilizationRecord{
		utilization(nextHour, "S1", "C1", models.ConnectorAvailable),
		utilization(first, "S2", "C3", models.ConnectorFaulted),
		utilization(first, "S1", "C1", models.ConnectorOccupied),
		utilization(first, "S1", "C2", models.ConnectorAvailable),
		utilization(second, "S1", "C1", models.ConnectorOccupied),
	}
	got := Aggregate(records)
	require.Len(t, got, 3)

	s1 := got[0]
	require.Equal(t, "S1", s1.StationID)
	require.True(t, s1.HourlyTimestamp.Equal(models.TruncateHour(first)))
	// two polls in the same hour count as separate observations
	require.Equal(t, 3, s1.TotalConnectors)
	require.Equal(t, 2, s1.IsOccupied)
	require.Equal(t, 1, s1.IsAvailable)
	require.InDelta(t, 2.0/3.0, s1.OccupancyRate, 1e-9)
	require.InDelta(t, 1.0/3.0, s1.AvailabilityRate, 1e-9)

	s2 := got[1]
	require.Equal(t, "S2", s2.StationID)
	require.Equal(t, 1, s2.TotalConnectors)
	require.Zero(t, s2.OccupancyRate)

	require.Equal(t, "S1", got[2].StationID)
	require.True(t, got[2].HourlyTimestamp.Equal(models.TruncateHour(nextHour)))
}

func TestAggregateRatesBoundedAndIdempotent(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	statuses := []string{models.ConnectorAvailable, models.ConnectorOccupied, models.ConnectorOutOfOrder, models.ConnectorFaulted, "Reserved"}
	var records []models.UtilizationRecord
	for i := 0; i < 40; i++ {
		station := []string{"A", "B", "C"}[i%3]
		ts := at.Add(time.Duration(i*7) * time.Minute)
		records = append(records, utilization(ts, station, station+string(rune('0'+i%10)), statuses[i%len(statuses)]))
	}

	first := Aggregate(records)
	for _, h := range first {
		require.Positive(t, h.TotalConnectors)
		require.GreaterOrEqual(t, h.OccupancyRate, 0.0)
		require.LessOrEqual(t, h.OccupancyRate, 1.0)
		require.GreaterOrEqual(t, h.AvailabilityRate, 0.0)
		require.LessOrEqual(t, h.AvailabilityRate, 1.0)
	}
	require.Equal(t, first, Aggregate(records))
}

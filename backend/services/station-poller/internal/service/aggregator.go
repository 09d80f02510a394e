package service

import (
	"sort"

	"chargewatch/backend/services/station-poller/internal/models"
)

type hourKey struct {
	hour      int64
	stationID string
}

// Aggregate groups utilization records per (hour, station). TotalConnectors counts connector
// observations, so several polls within one hour each contribute.
func Aggregate(records []models.UtilizationRecord) []models.HourlyAggregate {
	if len(records) == 0 {
		return nil
	}
	groups := make(map[hourKey]*models.HourlyAggregate)
	for _, r := range records {
		k := hourKey{hour: r.HourlyTimestamp.UnixNano(), stationID: r.StationID}
		agg, ok := groups[k]
		if !ok {
			agg = &models.HourlyAggregate{HourlyTimestamp: r.HourlyTimestamp, StationID: r.StationID}
			groups[k] = agg
		}
		agg.IsAvailable += r.IsAvailable
		agg.IsOccupied += r.IsOccupied
		agg.IsOutOfOrder += r.IsOutOfOrder
		agg.TotalConnectors++
	}

	out := make([]models.HourlyAggregate, 0, len(groups))
	for _, agg := range groups {
		n := float64(agg.TotalConnectors)
		agg.OccupancyRate = float64(agg.IsOccupied) / n
		agg.AvailabilityRate = float64(agg.IsAvailable) / n
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].HourlyTimestamp.Equal(out[j].HourlyTimestamp) {
			return out[i].HourlyTimestamp.Before(out[j].HourlyTimestamp)
		}
		return out[i].StationID < out[j].StationID
	})
	return out
}


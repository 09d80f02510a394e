package models

import "time"

// Station is one normalized station snapshot. AvailableConnectors is derived during
// transformation and is not persisted.
type Station struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Operator          string   `json:"operator"`
	Status            string   `json:"status"`
	Address           string   `json:"address"`
	Description       string   `json:"description"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	TotalConnectors   int      `json:"total_connectors"`
	CCSConnectors     int      `json:"ccs_connectors"`
	CHAdeMOConnectors int      `json:"chademo_connectors"`
	Type2Connectors   int      `json:"type2_connectors"`
	OtherConnectors   int      `json:"other_connectors"`
	Amenities         string   `json:"amenities"`

	AvailableConnectors int `json:"available_connectors"`
}

// UtilizationRecord is one connector observed at one poll.
type UtilizationRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	HourlyTimestamp time.Time `json:"hourly_timestamp"`
	StationID       string    `json:"station_id"`
	ConnectorID     string    `json:"connector_id"`
	ConnectorType   string    `json:"connector_type"`
	Power           string    `json:"power"`
	Status          string    `json:"status"`
	IsOccupied      int       `json:"is_occupied"`
	IsAvailable     int       `json:"is_available"`
	IsOutOfOrder    int       `json:"is_out_of_order"`
	Tariff          string    `json:"tariff"`
}

// HourlyAggregate rolls utilization observations up per station and clock hour.
type HourlyAggregate struct {
	HourlyTimestamp  time.Time `json:"hourly_timestamp"`
	StationID        string    `json:"station_id"`
	IsAvailable      int       `json:"is_available"`
	IsOccupied       int       `json:"is_occupied"`
	IsOutOfOrder     int       `json:"is_out_of_order"`
	TotalConnectors  int       `json:"total_connectors"`
	OccupancyRate    float64   `json:"occupancy_rate"`
	AvailabilityRate float64   `json:"availability_rate"`
}

// TruncateHour zeroes minutes, seconds and nanoseconds in t's own location.
func TruncateHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

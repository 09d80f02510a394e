package models

import "time"

// RunSummary describes one pipeline invocation. It is written to the metadata file, served by the
// ops API and pushed to websocket subscribers.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stations           int `json:"stations"`
	UtilizationRecords int `json:"utilization_records"`
	HourlyRecords      int `json:"hourly_records"`
	Skipped            int `json:"skipped"`

	Available  int `json:"available"`
	Occupied   int `json:"occupied"`
	OutOfOrder int `json:"out_of_order"`

	StationStatusCounts     map[string]int `json:"station_status_counts"`
	ConnectorTypes          map[string]int `json:"connector_types"`
	UtilizationStatusCounts map[string]int `json:"utilization_status_counts"`
	OccupancyRate           *float64       `json:"occupancy_rate"`

	ValidationPassed bool     `json:"validation_passed"`
	ValidationIssues []string `json:"validation_issues"`
	Degraded         []string `json:"degraded"`
	PayloadDigest    string   `json:"payload_digest"`
}

// Snapshot is everything a run produced, handed to the optional sinks.
type Snapshot struct {
	Summary     *RunSummary
	Stations    []Station
	Utilization []UtilizationRecord
	Hourly      []HourlyAggregate
}

// Summarize fills the row counts and distribution fields of s.
func (s *RunSummary) Summarize(stations []Station, utilization []UtilizationRecord, hourly []HourlyAggregate) {
	s.Stations = len(stations)
	s.UtilizationRecords = len(utilization)
	s.HourlyRecords = len(hourly)

	s.StationStatusCounts = make(map[string]int)
	s.ConnectorTypes = map[string]int{"ccs": 0, "chademo": 0, "type2": 0}
	for _, st := range stations {
		s.StationStatusCounts[st.Status]++
		s.ConnectorTypes["ccs"] += st.CCSConnectors
		s.ConnectorTypes["chademo"] += st.CHAdeMOConnectors
		s.ConnectorTypes["type2"] += st.Type2Connectors
	}

	s.Available, s.Occupied, s.OutOfOrder = 0, 0, 0
	s.UtilizationStatusCounts = make(map[string]int)
	for _, r := range utilization {
		s.UtilizationStatusCounts[r.Status]++
		s.Available += r.IsAvailable
		s.Occupied += r.IsOccupied
		s.OutOfOrder += r.IsOutOfOrder
	}
	s.OccupancyRate = nil
	if len(utilization) > 0 {
		rate := float64(s.Occupied) / float64(len(utilization))
		s.OccupancyRate = &rate
	}
}

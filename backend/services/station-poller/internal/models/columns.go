package models

import (
	"fmt"
	"strconv"
	"time"

	"chargewatch/backend/services/station-poller/internal/table"
)

// Persisted column orders.
var (
	StationColumns = []string{
		"id", "name", "operator", "status", "address", "description", "latitude", "longitude",
		"total_connectors", "ccs_connectors", "chademo_connectors", "type2_connectors", "other_connectors",
		"amenities",
	}
	UtilizationColumns = []string{
		"timestamp", "hourly_timestamp", "station_id", "connector_id", "connector_type", "power", "status",
		"is_occupied", "is_available", "is_out_of_order", "tariff",
	}
	HourlyColumns = []string{
		"hourly_timestamp", "station_id", "is_available", "is_occupied", "is_out_of_order",
		"total_connectors", "occupancy_rate", "availability_rate",
	}
)

// Dedup keys per table.
var (
	StationKey     = []string{"id"}
	UtilizationKey = []string{"timestamp", "connector_id"}
	HourlyKey      = []string{"hourly_timestamp", "station_id"}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatTimestamp renders t as RFC 3339 with nanoseconds.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 and the common naive ISO layouts. Naive values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("models: unrecognized timestamp %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// StationsTable encodes stations in persisted column order.
func StationsTable(stations []Station) *table.Table {
	t := table.New(StationColumns...)
	for _, s := range stations {
		t.Append([]string{
			s.ID, s.Name, s.Operator, s.Status, s.Address, s.Description,
			formatOptional(s.Latitude), formatOptional(s.Longitude),
			strconv.Itoa(s.TotalConnectors), strconv.Itoa(s.CCSConnectors), strconv.Itoa(s.CHAdeMOConnectors),
			strconv.Itoa(s.Type2Connectors), strconv.Itoa(s.OtherConnectors),
			s.Amenities,
		})
	}
	return t
}

// UtilizationTable encodes utilization records in persisted column order.
func UtilizationTable(records []UtilizationRecord) *table.Table {
	t := table.New(UtilizationColumns...)
	for _, r := range records {
		t.Append([]string{
			FormatTimestamp(r.Timestamp), FormatTimestamp(r.HourlyTimestamp),
			r.StationID, r.ConnectorID, r.ConnectorType, r.Power, r.Status,
			strconv.Itoa(r.IsOccupied), strconv.Itoa(r.IsAvailable), strconv.Itoa(r.IsOutOfOrder),
			r.Tariff,
		})
	}
	return t
}

// HourlyTable encodes hourly aggregates in persisted column order.
func HourlyTable(rows []HourlyAggregate) *table.Table {
	t := table.New(HourlyColumns...)
	for _, h := range rows {
		t.Append([]string{
			FormatTimestamp(h.HourlyTimestamp), h.StationID,
			strconv.Itoa(h.IsAvailable), strconv.Itoa(h.IsOccupied), strconv.Itoa(h.IsOutOfOrder),
			strconv.Itoa(h.TotalConnectors),
			formatFloat(h.OccupancyRate), formatFloat(h.AvailabilityRate),
		})
	}
	return t
}

// rowReader decodes typed cells of one row and remembers the first failure.
type rowReader struct {
	t   *table.Table
	row int
	err error
}

func (r *rowReader) str(col string) string {
	return r.t.Value(r.row, col)
}

func (r *rowReader) integer(col string) int {
	raw := r.t.Value(r.row, col)
	if raw == "" || r.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// older files may carry "3.0"
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			r.err = fmt.Errorf("row %d column %s: %w", r.row+1, col, err)
			return 0
		}
		return int(f)
	}
	return v
}

func (r *rowReader) number(col string) float64 {
	raw := r.t.Value(r.row, col)
	if raw == "" || r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.err = fmt.Errorf("row %d column %s: %w", r.row+1, col, err)
	}
	return v
}

func (r *rowReader) optional(col string) *float64 {
	raw := r.t.Value(r.row, col)
	if raw == "" || r.err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.err = fmt.Errorf("row %d column %s: %w", r.row+1, col, err)
		return nil
	}
	return &v
}

func (r *rowReader) timestamp(col string) time.Time {
	raw := r.t.Value(r.row, col)
	if raw == "" || r.err != nil {
		return time.Time{}
	}
	v, err := ParseTimestamp(raw)
	if err != nil {
		r.err = fmt.Errorf("row %d column %s: %w", r.row+1, col, err)
	}
	return v
}

func requireColumns(t *table.Table, cols []string) error {
	if t == nil {
		return fmt.Errorf("models: nil table")
	}
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("models: missing column %q", c)
		}
	}
	return nil
}

// StationsFromTable decodes a persisted stations table.
func StationsFromTable(t *table.Table) ([]Station, error) {
	if err := requireColumns(t, StationKey); err != nil {
		return nil, err
	}
	out := make([]Station, 0, t.Len())
	for i := range t.Rows {
		r := &rowReader{t: t, row: i}
		s := Station{
			ID:                r.str("id"),
			Name:              r.str("name"),
			Operator:          r.str("operator"),
			Status:            r.str("status"),
			Address:           r.str("address"),
			Description:       r.str("description"),
			Latitude:          r.optional("latitude"),
			Longitude:         r.optional("longitude"),
			TotalConnectors:   r.integer("total_connectors"),
			CCSConnectors:     r.integer("ccs_connectors"),
			CHAdeMOConnectors: r.integer("chademo_connectors"),
			Type2Connectors:   r.integer("type2_connectors"),
			OtherConnectors:   r.integer("other_connectors"),
			Amenities:         r.str("amenities"),
		}
		if r.err != nil {
			return nil, fmt.Errorf("models: stations %w", r.err)
		}
		out = append(out, s)
	}
	return out, nil
}

// UtilizationFromTable decodes a persisted utilization table.
func UtilizationFromTable(t *table.Table) ([]UtilizationRecord, error) {
	if err := requireColumns(t, UtilizationKey); err != nil {
		return nil, err
	}
	out := make([]UtilizationRecord, 0, t.Len())
	for i := range t.Rows {
		r := &rowReader{t: t, row: i}
		rec := UtilizationRecord{
			Timestamp:       r.timestamp("timestamp"),
			HourlyTimestamp: r.timestamp("hourly_timestamp"),
			StationID:       r.str("station_id"),
			ConnectorID:     r.str("connector_id"),
			ConnectorType:   r.str("connector_type"),
			Power:           r.str("power"),
			Status:          r.str("status"),
			IsOccupied:      r.integer("is_occupied"),
			IsAvailable:     r.integer("is_available"),
			IsOutOfOrder:    r.integer("is_out_of_order"),
			Tariff:          r.str("tariff"),
		}
		if r.err != nil {
			return nil, fmt.Errorf("models: utilization %w", r.err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// HourlyFromTable decodes a persisted hourly table.
func HourlyFromTable(t *table.Table) ([]HourlyAggregate, error) {
	if err := requireColumns(t, HourlyKey); err != nil {
		return nil, err
	}
	out := make([]HourlyAggregate, 0, t.Len())
	for i := range t.Rows {
		r := &rowReader{t: t, row: i}
		h := HourlyAggregate{
			HourlyTimestamp:  r.timestamp("hourly_timestamp"),
			StationID:        r.str("station_id"),
			IsAvailable:      r.integer("is_available"),
			IsOccupied:       r.integer("is_occupied"),
			IsOutOfOrder:     r.integer("is_out_of_order"),
			TotalConnectors:  r.integer("total_connectors"),
			OccupancyRate:    r.number("occupancy_rate"),
			AvailabilityRate: r.number("availability_rate"),
		}
		if r.err != nil {
			return nil, fmt.Errorf("models: hourly %w", r.err)
		}
		out = append(out, h)
	}
	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"chargewatch/backend/services/station-poller/internal/models"
)

// Execer is the part of *sql.DB the mirror needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var mirrorSchema = []string{
	`CREATE TABLE IF NOT EXISTS charging_stations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		operator TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		total_connectors INTEGER NOT NULL DEFAULT 0,
		ccs_connectors INTEGER NOT NULL DEFAULT 0,
		chademo_connectors INTEGER NOT NULL DEFAULT 0,
		type2_connectors INTEGER NOT NULL DEFAULT 0,
		other_connectors INTEGER NOT NULL DEFAULT 0,
		amenities TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS connector_utilization (
		ts TIMESTAMPTZ NOT NULL,
		hourly_ts TIMESTAMPTZ NOT NULL,
		station_id TEXT NOT NULL,
		connector_id TEXT NOT NULL,
		connector_type TEXT NOT NULL DEFAULT '',
		power TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		is_occupied SMALLINT NOT NULL,
		is_available SMALLINT NOT NULL,
		is_out_of_order SMALLINT NOT NULL,
		tariff TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (ts, connector_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hourly_utilization (
		hourly_ts TIMESTAMPTZ NOT NULL,
		station_id TEXT NOT NULL,
		is_available INTEGER NOT NULL,
		is_occupied INTEGER NOT NULL,
		is_out_of_order INTEGER NOT NULL,
		total_connectors INTEGER NOT NULL,
		occupancy_rate DOUBLE PRECISION NOT NULL,
		availability_rate DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (hourly_ts, station_id)
	)`,
}

// PostgresMirror copies each run into Postgres with the same last-write-wins keys as the CSV files.
type PostgresMirror struct {
	db Execer
}

// NewPostgresMirror returns mirror.
func NewPostgresMirror(db Execer) *PostgresMirror {
	return &PostgresMirror{db: db}
}

// Name identifies the sink in logs.
func (m *PostgresMirror) Name() string { return "postgres" }

// EnsureSchema creates the mirror tables when missing.
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mirrorSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres mirror: schema: %w", err)
		}
	}
	return nil
}

// Publish upserts every row of the snapshot.
func (m *PostgresMirror) Publish(ctx context.Context, snap models.Snapshot) error {
	for i := range snap.Stations {
		if err := m.upsertStation(ctx, &snap.Stations[i]); err != nil {
			return fmt.Errorf("postgres mirror: station %s: %w", snap.Stations[i].ID, err)
		}
	}
	for i := range snap.Utilization {
		if err := m.upsertUtilization(ctx, &snap.Utilization[i]); err != nil {
			return fmt.Errorf("postgres mirror: connector %s: %w", snap.Utilization[i].ConnectorID, err)
		}
	}
	for i := range snap.Hourly {
		if err := m.upsertHourly(ctx, &snap.Hourly[i]); err != nil {
			return fmt.Errorf("postgres mirror: hourly %s: %w", snap.Hourly[i].StationID, err)
		}
	}
	return nil
}

func (m *PostgresMirror) upsertStation(ctx context.Context, s *models.Station) error {
	const query = `
		INSERT INTO charging_stations (id, name, operator, status, address, description, latitude, longitude,
			total_connectors, ccs_connectors, chademo_connectors, type2_connectors, other_connectors, amenities, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			operator = EXCLUDED.operator,
			status = EXCLUDED.status,
			address = EXCLUDED.address,
			description = EXCLUDED.description,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			total_connectors = EXCLUDED.total_connectors,
			ccs_connectors = EXCLUDED.ccs_connectors,
			chademo_connectors = EXCLUDED.chademo_connectors,
			type2_connectors = EXCLUDED.type2_connectors,
			other_connectors = EXCLUDED.other_connectors,
			amenities = EXCLUDED.amenities,
			updated_at = NOW()
	`
	_, err := m.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Operator, s.Status, s.Address, s.Description,
		nullFloat(s.Latitude), nullFloat(s.Longitude),
		s.TotalConnectors, s.CCSConnectors, s.CHAdeMOConnectors, s.Type2Connectors, s.OtherConnectors,
		s.Amenities,
	)
	return err
}

func (m *PostgresMirror) upsertUtilization(ctx context.Context, r *models.UtilizationRecord) error {
	const query = `
		INSERT INTO connector_utilization (ts, hourly_ts, station_id, connector_id, connector_type, power, status,
			is_occupied, is_available, is_out_of_order, tariff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ts, connector_id) DO UPDATE SET
			hourly_ts = EXCLUDED.hourly_ts,
			station_id = EXCLUDED.station_id,
			connector_type = EXCLUDED.connector_type,
			power = EXCLUDED.power,
			status = EXCLUDED.status,
			is_occupied = EXCLUDED.is_occupied,
			is_available = EXCLUDED.is_available,
			is_out_of_order = EXCLUDED.is_out_of_order,
			tariff = EXCLUDED.tariff
	`
	_, err := m.db.ExecContext(ctx, query,
		r.Timestamp.UTC(), r.HourlyTimestamp.UTC(), r.StationID, r.ConnectorID, r.ConnectorType, r.Power, r.Status,
		r.IsOccupied, r.IsAvailable, r.IsOutOfOrder, r.Tariff,
	)
	return err
}

func (m *PostgresMirror) upsertHourly(ctx context.Context, h *models.HourlyAggregate) error {
	const query = `
		INSERT INTO hourly_utilization (hourly_ts, station_id, is_available, is_occupied, is_out_of_order,
			total_connectors, occupancy_rate, availability_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hourly_ts, station_id) DO UPDATE SET
			is_available = EXCLUDED.is_available,
			is_occupied = EXCLUDED.is_occupied,
			is_out_of_order = EXCLUDED.is_out_of_order,
			total_connectors = EXCLUDED.total_connectors,
			occupancy_rate = EXCLUDED.occupancy_rate,
			availability_rate = EXCLUDED.availability_rate
	`
	_, err := m.db.ExecContext(ctx, query,
		h.HourlyTimestamp.UTC(), h.StationID, h.IsAvailable, h.IsOccupied, h.IsOutOfOrder,
		h.TotalConnectors, h.OccupancyRate, h.AvailabilityRate,
	)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

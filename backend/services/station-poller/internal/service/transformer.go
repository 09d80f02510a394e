package service

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
)

var errMissingStationID = errors.New("station has no id")

// Transformer turns raw upstream stations into station and utilization rows.
type Transformer struct {
	defaultOperator string
	logger          *zap.Logger
}

// NewTransformer returns transformer. Stations without operator get defaultOperator.
func NewTransformer(defaultOperator string, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{defaultOperator: defaultOperator, logger: logger}
}

// ToStations derives one Station per raw station. Malformed stations are logged and skipped.
func (t *Transformer) ToStations(raw []models.RawStation) []models.Station {
	out := make([]models.Station, 0, len(raw))
	for i, rs := range raw {
		st, err := t.toStation(rs)
		if err != nil {
			t.logger.Warn("skipping malformed station", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, st)
	}
	return out
}

func (t *Transformer) toStation(rs models.RawStation) (models.Station, error) {
	id := strings.TrimSpace(string(rs.ID))
	if id == "" {
		return models.Station{}, errMissingStationID
	}

	st := models.Station{
		ID:          id,
		Name:        string(rs.Name),
		Operator:    string(rs.Operator),
		Address:     string(rs.Address),
		Description: string(rs.Description),
		Amenities:   rs.AmenityList(),
	}
	if st.Operator == "" {
		st.Operator = t.defaultOperator
	}
	if rs.Location != nil {
		st.Latitude = rs.Location.Lat
		st.Longitude = rs.Location.Lng
	}

	connectors := models.ResolveConnectors(rs)
	for _, c := range connectors {
		switch string(c.Type) {
		case models.TypeCCS:
			st.CCSConnectors++
		case models.TypeCHAdeMO:
			st.CHAdeMOConnectors++
		case models.TypeType2, models.TypeACType2:
			st.Type2Connectors++
		default:
			st.OtherConnectors++
		}
		if strings.EqualFold(string(c.Status), "AVAILABLE") {
			st.AvailableConnectors++
		}
	}

	st.TotalConnectors = len(connectors)
	if declared, ok := rs.DeclaredTotal(); ok {
		st.TotalConnectors = declared
	}
	st.Status = DeriveStationStatus(string(rs.Status), st.TotalConnectors, st.AvailableConnectors)

	if st.Latitude == nil || st.Longitude == nil {
		t.logger.Warn("station missing coordinates", zap.String("station_id", id))
	}
	if st.Name == "" {
		t.logger.Warn("station missing name", zap.String("station_id", id))
	}
	if st.Status == "" {
		t.logger.Warn("station missing status", zap.String("station_id", id))
		st.Status = models.StationUnknown
	}
	return st, nil
}

// DeriveStationStatus picks the canonical station status. Connector availability wins over the
// self-reported status, except when the latter marks the station out of order, planned or under
// construction.
func DeriveStationStatus(raw string, total, available int) string {
	mapped, known := models.MapStationStatus(raw)
	switch {
	case total == 0:
		return mapped
	case available > 0:
		return models.StationAvailable
	}
	if known {
		switch mapped {
		case models.StationOutOfOrder, models.StationPlanned, models.StationUnderConstruction:
			return mapped
		}
	}
	return models.StationOccupied
}

// ToUtilization emits one record per resolved connector, stamped with at and its hour. A connector
// without an id keeps an empty connector_id; validation reports it.
func (t *Transformer) ToUtilization(raw []models.RawStation, at time.Time) []models.UtilizationRecord {
	hour := models.TruncateHour(at)
	var out []models.UtilizationRecord
	for i, rs := range raw {
		stationID := strings.TrimSpace(string(rs.ID))
		if stationID == "" {
			t.logger.Warn("skipping connectors of station without id", zap.Int("index", i))
			continue
		}
		for _, c := range models.ResolveConnectors(rs) {
			connectorID := strings.TrimSpace(string(c.ID))
			if connectorID == "" {
				t.logger.Warn("connector without id", zap.String("station_id", stationID))
			}
			status := models.MapConnectorStatus(string(c.Status))
			occupied, available, outOfOrder := models.StatusFlags(status)
			out = append(out, models.UtilizationRecord{
				Timestamp:       at,
				HourlyTimestamp: hour,
				StationID:       stationID,
				ConnectorID:     connectorID,
				ConnectorType:   string(c.Type),
				Power:           c.PowerValue(),
				Status:          status,
				IsOccupied:      occupied,
				IsAvailable:     available,
				IsOutOfOrder:    outOfOrder,
				Tariff:          c.TariffValue(),
			})
		}
	}
	return out
}

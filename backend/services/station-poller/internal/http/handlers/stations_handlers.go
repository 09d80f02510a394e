package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
	redisstore "chargewatch/backend/services/station-poller/internal/redis"
)

// StatusCache returns cached station statuses.
type StatusCache interface {
	Statuses(ctx context.Context) ([]redisstore.StationStatus, error)
}

// StationLoader reads the persisted stations table.
type StationLoader interface {
	LoadStations() ([]models.Station, error)
}

// StationView is one item of the status listing.
type StationView struct {
	models.Station
	RunID     string     `json:"run_id,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// StationsResponse is the body of GET /api/stations/status.
type StationsResponse struct {
	Source   string        `json:"source"`
	Count    int           `json:"count"`
	Stations []StationView `json:"stations"`
}

// StationsHandlers serves the latest station statuses.
type StationsHandlers struct {
	cache  StatusCache
	loader StationLoader
	logger *zap.Logger
}

// NewStationsHandlers ctor. cache may be nil.
func NewStationsHandlers(cache StatusCache, loader StationLoader, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{cache: cache, loader: loader, logger: logger}
}

// Status handles GET /api/stations/status. It reads the cache and falls back to the CSV table.
func (h *StationsHandlers) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.collect(r.Context())
	if err != nil {
		h.logger.Error("failed to load station statuses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "station statuses unavailable")
		return
	}

	if want := strings.TrimSpace(r.URL.Query().Get("status")); want != "" {
		filtered := resp.Stations[:0]
		for _, st := range resp.Stations {
			if strings.EqualFold(st.Status, want) {
				filtered = append(filtered, st)
			}
		}
		resp.Stations = filtered
	}
	resp.Count = len(resp.Stations)
	writeJSON(w, http.StatusOK, resp)
}

func (h *StationsHandlers) collect(ctx context.Context) (*StationsResponse, error) {
	if h.cache != nil {
		cached, err := h.cache.Statuses(ctx)
		if err != nil {
			h.logger.Warn("station status cache unavailable, reading table", zap.Error(err))
		} else if len(cached) > 0 {
			views := make([]StationView, 0, len(cached))
			for _, c := range cached {
				updated := c.UpdatedAt
				views = append(views, StationView{Station: c.Station, RunID: c.RunID, UpdatedAt: &updated})
			}
			return &StationsResponse{Source: "redis", Stations: views}, nil
		}
	}

	stations, err := h.loader.LoadStations()
	if errors.Is(err, fs.ErrNotExist) {
		stations = nil
	} else if err != nil {
		return nil, err
	}
	views := make([]StationView, 0, len(stations))
	for _, st := range stations {
		views = append(views, StationView{Station: st})
	}
	return &StationsResponse{Source: "csv", Stations: views}, nil
}

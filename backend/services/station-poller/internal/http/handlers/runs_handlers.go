package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/http/middleware"
	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/scheduler"
)

// RunSource exposes the scheduler state to the API.
type RunSource interface {
	Latest() *models.RunSummary
	Stats() scheduler.Stats
	Trigger() bool
}

// RunsHandlers serves run summaries and manual triggers.
type RunsHandlers struct {
	runs   RunSource
	logger *zap.Logger
}

// NewRunsHandlers ctor.
func NewRunsHandlers(runs RunSource, logger *zap.Logger) *RunsHandlers {
	return &RunsHandlers{runs: runs, logger: logger}
}

// Latest handles GET /api/runs/latest.
func (h *RunsHandlers) Latest(w http.ResponseWriter, r *http.Request) {
	summary := h.runs.Latest()
	if summary == nil {
		writeError(w, http.StatusNotFound, "no completed run yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Stats handles GET /api/runs/stats.
func (h *RunsHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.Stats())
}

// Trigger handles POST /api/runs.
func (h *RunsHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	if !h.runs.Trigger() {
		writeError(w, http.StatusConflict, "a run is already pending")
		return
	}
	h.logger.Info("manual run queued", zap.String("subject", subject))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

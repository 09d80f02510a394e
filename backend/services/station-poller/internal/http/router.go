package httpserver

import (
	"net/http"

	"chargewatch/backend/services/station-poller/internal/http/handlers"
	"chargewatch/backend/services/station-poller/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	RunsHandlers     *handlers.RunsHandlers
	StationsHandlers *handlers.StationsHandlers
	HealthHandler    http.HandlerFunc
	MetricsHandler   http.Handler
	LiveFeedHandler  http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	mux.Handle("/api/runs/latest", method(http.MethodGet, http.HandlerFunc(deps.RunsHandlers.Latest)))
	mux.Handle("/api/runs/stats", method(http.MethodGet, http.HandlerFunc(deps.RunsHandlers.Stats)))
	mux.Handle("/api/stations/status", method(http.MethodGet, http.HandlerFunc(deps.StationsHandlers.Status)))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}
	mux.Handle("/api/runs", method(http.MethodPost, authenticated(http.HandlerFunc(deps.RunsHandlers.Trigger))))

	if deps.MetricsHandler != nil {
		mux.Handle("/metrics", method(http.MethodGet, deps.MetricsHandler))
	}
	if deps.LiveFeedHandler != nil {
		mux.Handle("/ws/runs", method(http.MethodGet, deps.LiveFeedHandler))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

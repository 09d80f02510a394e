package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chargewatch/backend/services/station-poller/internal/clients"
	"chargewatch/backend/services/station-poller/internal/models"
)

// Failure reasons used as the "reason" label.
const (
	ReasonNetwork   = "network"
	ReasonMalformed = "malformed"
	ReasonSchema    = "schema"
	ReasonUnknown   = "unknown"
)

// Registry holds the pipeline metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Runs             prometheus.Counter
	Failures         *prometheus.CounterVec
	Rows             *prometheus.CounterVec
	ValidationIssues prometheus.Counter
	FailedValidation prometheus.Counter
	Degraded         *prometheus.CounterVec
	Duration         prometheus.Histogram
	LastStations     prometheus.Gauge
	LastSuccess      prometheus.Gauge
	OccupancyRate    prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_poller_runs_total",
		Help: "Pipeline invocations that produced a summary.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_poller_run_failures_total",
		Help: "Pipeline invocations that failed, by reason.",
	}, []string{"reason"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_poller_rows_total",
		Help: "Rows produced per table.",
	}, []string{"table"})
	issues := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_poller_validation_issues_total",
		Help: "Validation issues reported across runs.",
	})
	failedValidation := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_poller_validation_failed_total",
		Help: "Runs whose validation did not pass.",
	})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_poller_degraded_total",
		Help: "Degraded saves or sink publishes, by target.",
	}, []string{"target"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_poller_run_duration_seconds",
		Help:    "Wall time of a pipeline invocation.",
		Buckets: prometheus.DefBuckets,
	})
	lastStations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_poller_last_stations",
		Help: "Stations seen by the last successful run.",
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_poller_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run.",
	})
	occupancy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_poller_occupancy_rate",
		Help: "Share of connectors occupied in the last run.",
	})

	r.MustRegister(runs, failures, rows, issues, failedValidation, degraded, duration, lastStations, lastSuccess, occupancy)
	return &Registry{
		reg:              r,
		Runs:             runs,
		Failures:         failures,
		Rows:             rows,
		ValidationIssues: issues,
		FailedValidation: failedValidation,
		Degraded:         degraded,
		Duration:         duration,
		LastStations:     lastStations,
		LastSuccess:      lastSuccess,
		OccupancyRate:    occupancy,
	}
}

// RecordRun updates the metrics after one invocation.
func (r *Registry) RecordRun(summary *models.RunSummary, err error, took time.Duration) {
	r.Duration.Observe(took.Seconds())
	if err != nil {
		r.Failures.WithLabelValues(FailureReason(err)).Inc()
		return
	}
	if summary == nil {
		return
	}

	r.Runs.Inc()
	r.Rows.WithLabelValues("stations").Add(float64(summary.Stations))
	r.Rows.WithLabelValues("utilization").Add(float64(summary.UtilizationRecords))
	r.Rows.WithLabelValues("hourly").Add(float64(summary.HourlyRecords))
	r.ValidationIssues.Add(float64(len(summary.ValidationIssues)))
	if !summary.ValidationPassed {
		r.FailedValidation.Inc()
	}
	for _, target := range summary.Degraded {
		r.Degraded.WithLabelValues(target).Inc()
	}
	r.LastStations.Set(float64(summary.Stations))
	r.LastSuccess.Set(float64(summary.FinishedAt.Unix()))
	if summary.OccupancyRate != nil {
		r.OccupancyRate.Set(*summary.OccupancyRate)
	}
}

// FailureReason maps an extraction error to a label value.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, clients.ErrNetworkFailure):
		return ReasonNetwork
	case errors.Is(err, clients.ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, clients.ErrUnexpectedSchema):
		return ReasonSchema
	default:
		return ReasonUnknown
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

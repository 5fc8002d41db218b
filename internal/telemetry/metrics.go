package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the monitoring loop and the
// retraining orchestrator. A dedicated registry keeps the scrape surface
// limited to what this service owns.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal       prometheus.Counter
	CycleErrorsTotal  prometheus.Counter
	ModelsScoredTotal prometheus.Counter
	JobsStartedTotal  prometheus.Counter
	JobsFinishedTotal *prometheus.CounterVec
	ActiveJobs        prometheus.Gauge
	CycleDuration     prometheus.Histogram
}

// New builds the collector set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelwatch_monitor_cycles_total",
			Help: "Orchestration cycles started.",
		}),
		CycleErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelwatch_monitor_cycle_errors_total",
			Help: "Per-model scoring failures across all cycles.",
		}),
		ModelsScoredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelwatch_models_scored_total",
			Help: "Models successfully scored.",
		}),
		JobsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelwatch_retraining_jobs_started_total",
			Help: "Retraining jobs started.",
		}),
		JobsFinishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelwatch_retraining_jobs_finished_total",
			Help: "Retraining jobs finished, labelled by result.",
		}, []string{"result"}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modelwatch_retraining_active_jobs",
			Help: "Retraining jobs currently in progress.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "modelwatch_monitor_cycle_duration_seconds",
			Help:    "Wall time of one orchestration cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(start time.Time) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(time.Since(start).Seconds())
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

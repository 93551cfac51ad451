package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toolsyncd/internal/domain"
)

type PrometheusMetrics struct {
	reconcileDuration *prometheus.HistogramVec
	reconciles        *prometheus.CounterVec
	sweeps            *prometheus.CounterVec
	toolsUpserted     prometheus.Counter
	toolsRemoved      prometheus.Counter
	cachedServices    prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		reconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolsync_reconcile_duration_seconds",
				Help:    "Duration of single-service reconciliations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		reconciles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolsync_reconciles_total",
				Help: "Total number of single-service reconciliations",
			},
			[]string{"service", "outcome"},
		),
		sweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolsync_sweeps_total",
				Help: "Total number of full poll sweeps",
			},
			[]string{"outcome"},
		),
		toolsUpserted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolsync_tools_upserted_total",
				Help: "Total number of tool upserts issued to the sink",
			},
		),
		toolsRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolsync_tools_removed_total",
				Help: "Total number of tool removals issued to the sink",
			},
		),
		cachedServices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolsync_cached_services",
				Help: "Current number of services with applied tools",
			},
		),
	}
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)

func (m *PrometheusMetrics) ObserveReconcile(service string, outcome domain.ReconcileOutcome, duration time.Duration) {
	m.reconciles.WithLabelValues(service, string(outcome)).Inc()
	m.reconcileDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveSweep(outcome domain.SweepOutcome) {
	m.sweeps.WithLabelValues(string(outcome)).Inc()
}

func (m *PrometheusMetrics) AddToolsUpserted(n int) {
	if n > 0 {
		m.toolsUpserted.Add(float64(n))
	}
}

func (m *PrometheusMetrics) AddToolsRemoved(n int) {
	if n > 0 {
		m.toolsRemoved.Add(float64(n))
	}
}

func (m *PrometheusMetrics) SetCachedServices(n int) {
	m.cachedServices.Set(float64(n))
}

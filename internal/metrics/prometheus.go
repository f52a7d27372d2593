// Package metrics provides Prometheus metrics for the call analytics pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every pipeline metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	callsProcessed prometheus.Counter
	callsFailed    *prometheus.CounterVec
	callLatency    prometheus.Histogram
	stageLatency   *prometheus.HistogramVec
	workersBusy    prometheus.Gauge

	kpiAttempts prometheus.Counter
	kpiAbsent   *prometheus.CounterVec
	redactions  *prometheus.CounterVec
}

// Global metrics manager on its own registry to avoid default Go collectors.
var globalManager = NewManager() //nolint:gochecknoglobals // singleton like the HTTP handler it backs

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "callkpi",
		subsystem:        "pipeline",
		histogramBuckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.callsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calls_processed_total",
		Help:      "Calls that produced both intra-call and inter-call records",
	})
	m.callsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calls_failed_total",
		Help:      "Calls skipped from a batch, by failure kind",
	}, []string{"kind"})
	m.callLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "call_latency_seconds",
		Help:      "End-to-end latency of one call pipeline",
		Buckets:   m.histogramBuckets,
	})
	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_latency_seconds",
		Help:      "Latency of each pipeline stage",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})
	m.workersBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "workers_busy",
		Help:      "Workers currently running a call pipeline",
	})
	m.kpiAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "kpi_attempts_total",
		Help:      "Requests sent to the generative KPI model, retries included",
	})
	m.kpiAbsent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "kpi_absent_total",
		Help:      "KPIs the model response did not provide",
	}, []string{"kpi"})
	m.redactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "redactions_total",
		Help:      "PII spans replaced with placeholders, by entity class",
	}, []string{"class"})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global returns the process-wide manager.
func Global() *Manager { return globalManager }

// Handler serves the global registry.
func Handler() http.Handler { return globalManager.Handler() }

func RecordCallProcessed(seconds float64) {
	globalManager.callsProcessed.Inc()
	globalManager.callLatency.Observe(seconds)
}

func RecordCallFailed(kind string) { globalManager.callsFailed.WithLabelValues(kind).Inc() }

func ObserveStage(stage string, seconds float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func WorkerBusy()                  { globalManager.workersBusy.Inc() }
func WorkerIdle()                  { globalManager.workersBusy.Dec() }
func RecordKPIAttempt()            { globalManager.kpiAttempts.Inc() }
func RecordKPIAbsent(name string)  { globalManager.kpiAbsent.WithLabelValues(name).Inc() }
func RecordRedaction(class string) { globalManager.redactions.WithLabelValues(class).Inc() }

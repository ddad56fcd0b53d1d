// Package metrics exposes Prometheus instruments for the collocation
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hirs_avhrr"

// Task outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics for the pipeline
type Metrics struct {
	// Context discovery
	ContextsFound *prometheus.CounterVec

	// Task execution
	Tasks              *prometheus.CounterVec
	TasksInFlight      prometheus.Gauge
	TaskRetries        *prometheus.CounterVec
	SubprocessDuration *prometheus.HistogramVec

	// Catalog data lists
	DataListLoads *prometheus.CounterVec

	// Output handling
	Compressions *prometheus.CounterVec
	OutputBytes  *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ContextsFound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contexts_found_total",
				Help:      "Total number of collocation contexts discovered",
			},
			[]string{"satellite"},
		),

		Tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of collocation tasks by outcome and error kind",
			},
			[]string{"satellite", "outcome", "kind"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_in_flight",
				Help:      "Number of collocation tasks currently running",
			},
		),
		TaskRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_retries_total",
				Help:      "Total number of task retries after a not-ready input",
			},
			[]string{"satellite"},
		),
		SubprocessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "subprocess_duration_seconds",
				Help:      "Collocation executable run time in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"satellite", "exit_code"},
		),

		DataListLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "data_list_loads_total",
				Help:      "Data list lookups by cache result",
			},
			[]string{"file_type", "cache"},
		),

		Compressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compressions_total",
				Help:      "Total number of compressed outputs by codec",
			},
			[]string{"codec"},
		),
		OutputBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_bytes_total",
				Help:      "Bytes of collocation output written",
			},
			[]string{"satellite"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordContextsFound adds n discovered contexts for satellite.
func (m *Metrics) RecordContextsFound(satellite string, n int) {
	if m == nil {
		return
	}
	m.ContextsFound.WithLabelValues(satellite).Add(float64(n))
}

// RecordTask counts a finished task. kind is empty on success.
func (m *Metrics) RecordTask(satellite, outcome, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	m.Tasks.WithLabelValues(satellite, outcome, kind).Inc()
}

// TaskStarted increments the in-flight gauge and returns a func that
// decrements it.
func (m *Metrics) TaskStarted() func() {
	if m == nil {
		return func() {}
	}
	m.TasksInFlight.Inc()
	return m.TasksInFlight.Dec
}

// RecordRetry counts one retry for satellite.
func (m *Metrics) RecordRetry(satellite string) {
	if m == nil {
		return
	}
	m.TaskRetries.WithLabelValues(satellite).Inc()
}

// ObserveSubprocess records the run time of one executable invocation.
func (m *Metrics) ObserveSubprocess(satellite string, exitCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.SubprocessDuration.WithLabelValues(satellite, strconv.Itoa(exitCode)).Observe(d.Seconds())
}

// RecordDataListLoad counts a data list lookup; hit reports a cache hit.
func (m *Metrics) RecordDataListLoad(fileType string, hit bool) {
	if m == nil {
		return
	}
	cache := "miss"
	if hit {
		cache = "hit"
	}
	m.DataListLoads.WithLabelValues(fileType, cache).Inc()
}

// RecordOutput counts an output file of size bytes, compressed with codec.
func (m *Metrics) RecordOutput(satellite, codec string, size int64) {
	if m == nil {
		return
	}
	if codec != "" && codec != "none" {
		m.Compressions.WithLabelValues(codec).Inc()
	}
	m.OutputBytes.WithLabelValues(satellite).Add(float64(size))
}

// RecordError counts a structured error by code.
func (m *Metrics) RecordError(code, component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

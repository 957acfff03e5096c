// Package metrics provides Prometheus metrics for the organizer service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ScansTotal           *prometheus.CounterVec
	ScanDuration         prometheus.Histogram
	ClassificationsTotal *prometheus.CounterVec
	InferenceDuration    prometheus.Histogram
	ExecutionsTotal      *prometheus.CounterVec
	BytesMoved           prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeshelf_scans_total",
				Help: "Total directory scans by status.",
			},
			[]string{"status"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "codeshelf_scan_duration_seconds",
				Help:    "Directory scan duration.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeshelf_classifications_total",
				Help: "Total classifications by method and category.",
			},
			[]string{"method", "category"},
		),
		InferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "codeshelf_inference_duration_seconds",
				Help:    "Model inference call duration.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeshelf_executions_total",
				Help: "Total plan executions by outcome.",
			},
			[]string{"status"},
		),
		BytesMoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "codeshelf_bytes_moved_total",
				Help: "Total bytes moved by completed executions.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeshelf_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.ScansTotal)
	reg.MustRegister(m.ScanDuration)
	reg.MustRegister(m.ClassificationsTotal)
	reg.MustRegister(m.InferenceDuration)
	reg.MustRegister(m.ExecutionsTotal)
	reg.MustRegister(m.BytesMoved)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordScan increments the scan counter and observes its duration.
func (m *Metrics) RecordScan(status string, seconds float64) {
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDuration.Observe(seconds)
}

// RecordClassification increments the classification counter.
func (m *Metrics) RecordClassification(method, category string) {
	m.ClassificationsTotal.WithLabelValues(method, category).Inc()
}

// RecordExecution increments the execution counter.
func (m *Metrics) RecordExecution(status string, bytes int64) {
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.BytesMoved.Add(float64(bytes))
	}
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

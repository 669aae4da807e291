// Package metrics provides Prometheus instrumentation for the scan service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service-level collectors behind a private registry.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	findingsTotal *prometheus.CounterVec
	activeScans   prometheus.Gauge
}

// New builds a registry with the standard Go and process collectors plus the
// scan-service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securescan",
			Name:      "scans_total",
			Help:      "Completed scans by terminal status.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "securescan",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of completed scans.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securescan",
			Name:      "findings_total",
			Help:      "Issues found by completed scans, by severity.",
		}, []string{"severity"}),
		activeScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "securescan",
			Name:      "active_scans",
			Help:      "Scans currently in flight.",
		}),
	}
	registry.MustRegister(m.scansTotal, m.scanDuration, m.findingsTotal, m.activeScans)
	return m
}

// Handler exposes the registry for a /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanStarted records a scan entering the running state.
func (m *Metrics) ScanStarted() {
	m.activeScans.Inc()
}

// ScanFinished records a scan leaving the running state with its terminal
// status and duration.
func (m *Metrics) ScanFinished(status string, seconds float64) {
	m.activeScans.Dec()
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(seconds)
}

// ObserveFindings accumulates the per-severity issue counts of a completed
// scan.
func (m *Metrics) ObserveFindings(critical, high, medium, low int) {
	m.findingsTotal.WithLabelValues("critical").Add(float64(critical))
	m.findingsTotal.WithLabelValues("high").Add(float64(high))
	m.findingsTotal.WithLabelValues("medium").Add(float64(medium))
	m.findingsTotal.WithLabelValues("low").Add(float64(low))
}

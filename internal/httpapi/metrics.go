package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timerlint/internal/scan"
	"timerlint/internal/schedule"
)

// Metrics holds the Prometheus collectors exposed on /metrics. Each Metrics
// has its own registry.
type Metrics struct {
	registry     *prometheus.Registry
	validations  *prometheus.CounterVec
	scanDuration prometheus.Histogram
	findings     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timerlint_validations_total",
				Help: "Schedule expressions classified, by outcome.",
			},
			[]string{"kind"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timerlint_scan_duration_seconds",
				Help:    "Wall time of source tree scans.",
				Buckets: prometheus.DefBuckets,
			},
		),
		findings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "timerlint_findings",
				Help: "Findings in the last scan, by severity.",
			},
			[]string{"severity"},
		),
	}
	m.registry.MustRegister(m.validations, m.scanDuration, m.findings)
	return m
}

// ObserveValidation counts one classified expression.
func (m *Metrics) ObserveValidation(kind schedule.OutcomeKind) {
	m.validations.WithLabelValues(kind.String()).Inc()
}

// ObserveScan records a completed scan. It satisfies watch.Observer.
func (m *Metrics) ObserveScan(took time.Duration, findings []scan.Finding) {
	m.scanDuration.Observe(took.Seconds())
	for sev, n := range scan.Counts(findings) {
		m.findings.WithLabelValues(string(sev)).Set(float64(n))
	}
	for _, f := range findings {
		m.ObserveValidation(f.Outcome.Kind)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

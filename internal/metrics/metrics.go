// Package metrics exposes Prometheus counters for ingestion and AI analysis.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestions       *prometheus.CounterVec
	rowsAnalyzed     prometheus.Counter
	insightsRequests *prometheus.CounterVec
	insightsDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpa_ingestions_total",
			Help: "Ingestion events by source (upload, sample, api) and result.",
		}, []string{"source", "result"}),
		rowsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fpa_rows_analyzed_total",
			Help: "Rows augmented by the variance transform.",
		}),
		insightsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpa_insights_requests_total",
			Help: "AI analysis requests by result.",
		}, []string{"result"}),
		insightsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fpa_insights_duration_seconds",
			Help:    "Latency of AI analysis requests.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
	m.registry.MustRegister(
		m.ingestions,
		m.rowsAnalyzed,
		m.insightsRequests,
		m.insightsDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Ingestion counts one ingestion event.
func (m *Metrics) Ingestion(source string, err error) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(source, result(err)).Inc()
}

// RowsAnalyzed adds n augmented rows.
func (m *Metrics) RowsAnalyzed(n int) {
	if m == nil {
		return
	}
	m.rowsAnalyzed.Add(float64(n))
}

// Insights records one AI analysis request and its latency.
func (m *Metrics) Insights(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.insightsRequests.WithLabelValues(result(err)).Inc()
	m.insightsDuration.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

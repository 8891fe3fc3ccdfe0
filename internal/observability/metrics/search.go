package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SearchMetrics tracks retrieval activity. Prometheus series back the
// /metrics endpoint; the atomic counters back the snapshot exposed to
// callers that cannot scrape.
type SearchMetrics struct {
	registry *prometheus.Registry

	searchTotal     *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchInFlight  prometheus.Gauge
	fusionTotal     prometheus.Counter
	degradedTotal   *prometheus.CounterVec
	lexicalDuration prometheus.Histogram
	resultCount     *prometheus.HistogramVec

	searchCount    atomic.Int64
	totalLatencyNs atomic.Int64
	fusionCount    atomic.Int64
}

func NewSearchMetrics(service string) *SearchMetrics {
	registry := prometheus.NewRegistry()

	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search duration in seconds by mode.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	searchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "in_flight",
			Help:      "Number of in-flight search requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	fusionTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "fusions_total",
			Help:      "Total rank fusions performed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Searches that fell back to a reduced mode, by reason.",
		},
		[]string{"service", "reason"},
	)
	lexicalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "lexical_duration_seconds",
			Help:      "Lexical query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	resultCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Number of results returned per search by mode.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service", "mode"},
	)

	registry.MustRegister(searchTotal, searchDuration, searchInFlight, fusionTotal, degradedTotal, lexicalDuration, resultCount)

	return &SearchMetrics{
		registry:        registry,
		searchTotal:     searchTotal,
		searchDuration:  searchDuration,
		searchInFlight:  searchInFlight,
		fusionTotal:     fusionTotal,
		degradedTotal:   degradedTotal,
		lexicalDuration: lexicalDuration,
		resultCount:     resultCount,
	}
}

func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SearchMetrics) StartSearch() {
	m.searchInFlight.Inc()
}

func (m *SearchMetrics) ObserveSearch(service, mode, status string, results int, elapsed time.Duration) {
	m.searchInFlight.Dec()
	m.searchTotal.WithLabelValues(service, mode, status).Inc()
	m.searchDuration.WithLabelValues(service, mode).Observe(elapsed.Seconds())
	m.resultCount.WithLabelValues(service, mode).Observe(float64(results))

	m.searchCount.Add(1)
	m.totalLatencyNs.Add(elapsed.Nanoseconds())
}

func (m *SearchMetrics) ObserveLexical(elapsed time.Duration) {
	m.lexicalDuration.Observe(elapsed.Seconds())
}

func (m *SearchMetrics) IncFusion() {
	m.fusionTotal.Inc()
	m.fusionCount.Add(1)
}

func (m *SearchMetrics) IncDegraded(service, reason string) {
	m.degradedTotal.WithLabelValues(service, reason).Inc()
}

// Snapshot returns cumulative counters since process start. Average
// latency is reported in seconds.
func (m *SearchMetrics) Snapshot() (searches int64, avgLatencySeconds float64, fusions int64) {
	searches = m.searchCount.Load()
	fusions = m.fusionCount.Load()
	if searches > 0 {
		avgLatencySeconds = float64(m.totalLatencyNs.Load()) / float64(searches) / 1e9
	}
	return searches, avgLatencySeconds, fusions
}

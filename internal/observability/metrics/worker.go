package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the indexing side: queue consumption, document
// processing and chunk writes. The service name is fixed at
// construction since one worker process serves one queue group.
type WorkerMetrics struct {
	registry *prometheus.Registry

	documentsTotal  *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	queueLag        prometheus.Histogram
	chunksIndexed   prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "documents_processed_total",
			Help:        "Processed documents by terminal status.",
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "document_process_duration_seconds",
			Help:        "Document processing duration in seconds by terminal status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "documents_in_flight",
			Help:        "Documents currently being processed.",
			ConstLabels: serviceLabel,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between document upload and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: serviceLabel,
		},
	)
	chunksIndexed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "worker",
			Name:        "chunks_indexed_total",
			Help:        "Chunks written to the vector store.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(documentsTotal, processDuration, inFlight, queueLag, chunksIndexed)

	return &WorkerMetrics{
		registry:        registry,
		documentsTotal:  documentsTotal,
		processDuration: processDuration,
		inFlight:        inFlight,
		queueLag:        queueLag,
		chunksIndexed:   chunksIndexed,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.inFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.documentsTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *WorkerMetrics) AddChunksIndexed(n int) {
	if n > 0 {
		m.chunksIndexed.Add(float64(n))
	}
}

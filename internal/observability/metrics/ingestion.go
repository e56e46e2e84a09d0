package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

// IngestionMetrics observes background ingestion runs on the worker pool.
type IngestionMetrics struct {
	service string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewIngestionMetrics(service string, registerer prometheus.Registerer) *IngestionMetrics {
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "documents_total",
			Help:      "Total ingested documents by terminal status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Document ingestion duration in seconds by terminal status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "in_flight",
			Help:      "Number of documents currently being ingested.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "queue_lag_seconds",
			Help:      "Delay between upload acknowledgement and ingestion start.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	registerer.MustRegister(processTotal, processDuration, processInFlight, queueLag)

	return &IngestionMetrics{
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
	}
}

func (m *IngestionMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *IngestionMetrics) FinishDocument(status domain.DocumentStatus, duration time.Duration) {
	m.processInFlight.Dec()

	label := string(status)
	if !status.IsTerminal() {
		label = "ABANDONED"
	}
	m.processTotal.WithLabelValues(m.service, label).Inc()
	m.processDuration.WithLabelValues(m.service, label).Observe(duration.Seconds())
}

func (m *IngestionMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// RegisterPoolGauges exposes worker pool occupancy and queue depth.
func RegisterPoolGauges(service string, registerer prometheus.Registerer, running, queued func() int, capacity, queueCapacity int) {
	labels := prometheus.Labels{"service": service}
	capacityGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "ingestion",
		Name:        "pool_capacity",
		Help:        "Configured ingestion worker pool size.",
		ConstLabels: labels,
	})
	capacityGauge.Set(float64(capacity))
	queueCapacityGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "ingestion",
		Name:        "queue_capacity",
		Help:        "Configured ingestion task queue size.",
		ConstLabels: labels,
	})
	queueCapacityGauge.Set(float64(queueCapacity))

	registerer.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "ingestion",
				Name:        "pool_running_workers",
				Help:        "Workers currently executing ingestion tasks.",
				ConstLabels: labels,
			},
			func() float64 { return float64(running()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "ingestion",
				Name:        "queued_tasks",
				Help:        "Ingestion tasks waiting for a free worker.",
				ConstLabels: labels,
			},
			func() float64 { return float64(queued()) },
		),
		capacityGauge,
		queueCapacityGauge,
	)
}

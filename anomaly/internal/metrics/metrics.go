package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion gateway metrics
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_anomaly_ingest_requests_total",
			Help: "Total number of raw ingestion requests by outcome",
		},
		[]string{"outcome"},
	)

	IngestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_anomaly_ingest_bytes_total",
			Help: "Total payload bytes appended to the raw queue",
		},
	)

	QueueAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_anomaly_queue_append_duration_seconds",
			Help:    "Duration of raw queue appends in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Validated-create metrics
	CreateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_anomaly_create_requests_total",
			Help: "Total number of validated-create requests by outcome",
		},
		[]string{"outcome"},
	)

	// Fan-out metrics
	FanoutPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_anomaly_fanout_publish_errors_total",
			Help: "Total number of failed fan-out publishes",
		},
	)

	Observers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telhawk_anomaly_observers",
			Help: "Number of connected live observers",
		},
	)

	ObserversEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_anomaly_observers_evicted_total",
			Help: "Total number of live observers dropped for falling behind",
		},
	)
)

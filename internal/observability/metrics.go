package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aedes",
		Name:      "images_processed_total",
		Help:      "Total number of batch images processed, by outcome",
	}, []string{"outcome"})

	BreedingSitesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aedes",
		Name:      "breeding_sites_detected_total",
		Help:      "Total number of breeding-site detections returned by the AI service",
	})

	DetectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aedes",
		Name:      "detect_call_duration_seconds",
		Help:      "Duration of remote detect calls, by outcome",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"outcome"})

	BatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aedes",
		Name:      "batch_queue_depth",
		Help:      "Number of batch items currently pending or processing",
	})

	AnalysesStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aedes",
		Name:      "analyses_stored_total",
		Help:      "Total number of analyses persisted to the store",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aedes",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aedes",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

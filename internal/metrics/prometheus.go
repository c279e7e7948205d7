package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SegmentationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "customer_segmentation_duration_seconds",
			Help:    "Segmentation processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"algorithm"},
	)

	SegmentationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_total",
			Help: "Total number of segmentation requests by outcome",
		},
		[]string{"algorithm", "status"},
	)

	RowsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "customer_segmentation_rows_dropped_total",
			Help: "Rows excluded from clustering because a feature was missing or not numeric",
		},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_uploads_total",
			Help: "Total dataset uploads by outcome",
		},
		[]string{"status"},
	)

	DatasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "customer_segmentation_dataset_rows",
			Help: "Rows in the current dataset",
		},
	)

	SegmentsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "customer_segmentation_segments",
			Help: "Populated segments in the current segmentation",
		},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_queries_total",
			Help: "Total customer and segment lookups by outcome",
		},
		[]string{"query_type", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_segmentation_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	EventSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "customer_segmentation_event_subscribers",
			Help: "Connected live event subscribers",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. It is safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SegmentationDuration)
		prometheus.MustRegister(SegmentationTotal)
		prometheus.MustRegister(RowsDropped)
		prometheus.MustRegister(UploadsTotal)
		prometheus.MustRegister(DatasetRows)
		prometheus.MustRegister(SegmentsCount)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(EventSubscribers)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

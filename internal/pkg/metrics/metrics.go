package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ogcview",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ogcview",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Upstream OGC API calls
	LoaderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "loader",
		Name:      "requests_total",
		Help:      "Requests sent to OGC API endpoints",
	}, []string{"op", "format", "outcome"})

	LoaderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ogcview",
		Subsystem: "loader",
		Name:      "request_duration_seconds",
		Help:      "Latency of OGC API requests including decoding",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"op", "format"})

	FeaturesPerLoad = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ogcview",
		Subsystem: "loader",
		Name:      "features_per_load",
		Help:      "Number of features returned by one items request",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"format"})

	PayloadSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ogcview",
		Subsystem: "loader",
		Name:      "payload_size_bytes",
		Help:      "Size of items payloads",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	}, []string{"format"})

	// Viewer sessions
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ogcview",
		Subsystem: "session",
		Name:      "active",
		Help:      "Current number of connected viewer sessions",
	})

	SessionLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "session",
		Name:      "loads_total",
		Help:      "Feature loads started by viewer sessions",
	}, []string{"trigger"})

	StaleResultsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "session",
		Name:      "stale_results_discarded_total",
		Help:      "Results dropped because a newer request superseded them",
	}, []string{"op"})

	DebounceFires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "refresh",
		Name:      "debounce_fires_total",
		Help:      "Debounce windows that elapsed and triggered a refresh",
	})

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ogcview",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Load events that could not be published",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// ObserveLoader records one upstream call.
func ObserveLoader(op, format, outcome string, elapsed time.Duration) {
	LoaderRequests.WithLabelValues(op, format, outcome).Inc()
	LoaderDuration.WithLabelValues(op, format).Observe(elapsed.Seconds())
}

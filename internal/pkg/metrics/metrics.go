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
		Namespace: "routegate",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routegate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routegate",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Gateway metrics
	ProviderProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "gateway",
		Name:      "provider_probes_total",
		Help:      "Health probes against recommendation providers",
	}, []string{"endpoint", "result"})

	ProviderSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "gateway",
		Name:      "provider_selections_total",
		Help:      "Times a provider was selected to serve a request",
	}, []string{"endpoint"})

	HealthyProviders = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "routegate",
		Subsystem: "gateway",
		Name:      "healthy_providers",
		Help:      "Number of healthy providers found per request",
		Buckets:   []float64{0, 1, 2, 3, 5, 8},
	})

	OriginFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "gateway",
		Name:      "origin_fallbacks_total",
		Help:      "Requests served with the fallback origin",
	}, []string{"reason"})

	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "gateway",
		Name:      "route_requests_total",
		Help:      "Aggregation requests by outcome",
	}, []string{"outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routegate",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to upstream services",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5, 10},
	}, []string{"upstream", "operation"})

	// Recommender metrics
	RecommendationsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "recommender",
		Name:      "options_generated_total",
		Help:      "Recommendation options synthesised",
	}, []string{"source", "mode"})

	// Location metrics
	LocationLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "location",
		Name:      "lookups_total",
		Help:      "Location lookups by result",
	}, []string{"result"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routegate",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
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
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// ObserveUpstream records how long an upstream call took.
func ObserveUpstream(upstream, operation string, start time.Time) {
	UpstreamDuration.WithLabelValues(upstream, operation).Observe(time.Since(start).Seconds())
}

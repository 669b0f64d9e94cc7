package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/busan-travel-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95 increases on page routes (weather fetch on miss).
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// KMA calls per feed (forecast, observation) and status. Watch for: error ratio, daily quota use.
	UpstreamCallsTotal *prometheus.CounterVec

	// KMA latency. The forecast feed returns up to 2000 rows and is the slow one.
	UpstreamDuration *prometheus.HistogramVec

	// Naver blog search calls by status.
	SearchCallsTotal *prometheus.CounterVec

	// Naver blog search latency.
	SearchDuration prometheus.Histogram

	// Blog searches by kind and place (allow-list; other places use place=other).
	SearchQueriesTotal *prometheus.CounterVec

	// Cache hits per feed. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses per feed. Each miss is one upstream call unless the key is unconfigured.
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend errors (memcached). Treated as misses.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache backend latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Concurrent misses on the same feed. Redundant upstream calls are accepted, only counted.
	CacheStampedeDetectedTotal *prometheus.CounterVec
	CacheStampedeConcurrency   *prometheus.HistogramVec

	// Display values rendered as "--" per feed and reason (unconfigured, upstream, empty).
	WeatherAbsentTotal *prometheus.CounterVec

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingSkippedTotal    prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rate limit denials on /api routes.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per upstream: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	trackedPlacesMu sync.RWMutex
	trackedPlaces   map[string]struct{}

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmaApiCallsTotal",
			Help: "Total number of KMA open API calls",
		},
		[]string{"feed", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmaApiDurationSeconds",
			Help:    "KMA open API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"feed", "status"},
	)
	SearchCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogSearchCallsTotal",
			Help: "Total number of Naver blog search calls",
		},
		[]string{"status"},
	)
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blogSearchDurationSeconds",
			Help:    "Naver blog search latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogSearchQueriesTotal",
			Help: "Blog searches by kind and place (allow-list; others use place=other)",
		},
		[]string{"kind", "place"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of weather cache hits",
		},
		[]string{"feed"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of weather cache misses (absent or older than the feed TTL)",
		},
		[]string{"feed"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache backend operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Cache misses that overlapped another in-progress miss for the same feed",
		},
		[]string{"feed"},
	)
	CacheStampedeConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Number of concurrent misses for the same feed when a stampede is detected",
			Buckets: []float64{2, 3, 5, 10, 20},
		},
		[]string{"feed"},
	)
	WeatherAbsentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherAbsentTotal",
			Help: "Weather values produced as unavailable, by feed and reason",
		},
		[]string{"feed", "reason"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs where at least one feed failed",
		},
	)
	CacheWarmingSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingSkippedTotal",
			Help: "Periodic cache warming runs skipped because the site was idle",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 20},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream (0 closed, 1 open, 2 half-open)",
		},
		[]string{"upstream"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"upstream", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		SearchCallsTotal, SearchDuration, SearchQueriesTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheStampedeDetectedTotal, CacheStampedeConcurrency,
		WeatherAbsentTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingSkippedTotal, CacheWarmingDurationSeconds,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterTrafficGauges registers windowed gauges over the traffic tracker.
// Call once from main after config load; later calls are no-ops.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamErrorRatioInWindow",
					Help: "Upstream error ratio in sliding window; drives /health degraded",
				},
				func() float64 {
					errs, total := traffic.ErrorRate(window)
					if total == 0 {
						return 0
					}
					return float64(errs) / float64(total)
				},
			),
		)
	})
}

// SetTrackedPlaces sets the allow-list for place metrics. Untracked places count as "other".
func SetTrackedPlaces(places []string) {
	trackedPlacesMu.Lock()
	defer trackedPlacesMu.Unlock()
	trackedPlaces = make(map[string]struct{}, len(places))
	for _, p := range places {
		trackedPlaces[normalizePlace(p)] = struct{}{}
	}
}

// RecordBlogSearch counts a blog search for kind and place.
func RecordBlogSearch(kind, place string) {
	SearchQueriesTotal.WithLabelValues(kind, MetricPlaceLabel(place)).Inc()
}

// MetricPlaceLabel returns place normalized when tracked, else "other".
func MetricPlaceLabel(place string) string {
	p := normalizePlace(place)
	trackedPlacesMu.RLock()
	_, ok := trackedPlaces[p]
	trackedPlacesMu.RUnlock()
	if ok {
		return p
	}
	return "other"
}

func normalizePlace(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

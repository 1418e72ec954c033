package apimw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_http_requests_total",
		Help: "Total HTTP requests handled, labeled by method, endpoint, and status.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	httpRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "api_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	}, []string{"method", "endpoint"})

	httpRequestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_http_request_size_bytes",
		Help:    "HTTP request body size in bytes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"method", "endpoint"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_http_response_size_bytes",
		Help:    "HTTP response body size in bytes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"method", "endpoint"})
)

// Metrics records Prometheus counters/histograms for every request. It must
// be mounted below gorilla/mux's route matching (i.e. as router middleware,
// not a bare http.Handler wrapper) so normalizeEndpoint can read the
// matched route's path template instead of the raw, high-cardinality URL.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := normalizeEndpoint(r)
		labels := prometheus.Labels{"method": r.Method, "endpoint": endpoint}

		httpRequestsInFlight.With(labels).Inc()
		defer httpRequestsInFlight.With(labels).Dec()

		if r.ContentLength > 0 {
			httpRequestSize.With(labels).Observe(float64(r.ContentLength))
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		httpRequestDuration.With(labels).Observe(duration)
		httpResponseSize.With(labels).Observe(float64(wrapped.size))
		httpRequestsTotal.With(prometheus.Labels{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   strconv.Itoa(wrapped.statusCode),
		}).Inc()
	})
}

// normalizeEndpoint returns the route's path template (e.g.
// "/v1/walls/{id}") rather than the literal request path, so per-entity
// IDs don't blow up cardinality. Falls back to the raw path when the
// request wasn't matched by gorilla/mux (e.g. a 404 on an unknown route).
func normalizeEndpoint(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

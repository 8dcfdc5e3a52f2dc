package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panorex_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "panorex_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "panorex_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})

	// AnalysesTotal counts analysis runs by outcome (success | error).
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panorex_analyses_total",
		Help: "Analysis runs by outcome.",
	}, []string{"outcome"})

	// ExportsTotal counts PDF exports by outcome (success | error).
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panorex_pdf_exports_total",
		Help: "PDF exports by outcome.",
	}, []string{"outcome"})
)

// MetricsHandler exposes the prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware tracks request counts, latency and in-flight gauge.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)

		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// HTTPMetrics returns the lazily-initialised registry used to record
// operational HTTP endpoint activity.
func HTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cube",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cube",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cube",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			httpRegistry.requests,
			httpRegistry.errors,
			httpRegistry.latency,
		)
	})
	return httpRegistry
}

// Observe records the outcome of one HTTP request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *httpMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

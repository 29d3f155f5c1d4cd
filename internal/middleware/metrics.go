package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware decisions.
type MiddlewareMetrics struct {
	rateLimitAllowed  prometheus.Counter
	rateLimitRejected prometheus.Counter
	bodyLimitRejected prometheus.Counter
	panicsRecovered   prometheus.Counter
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = newMiddlewareMetrics()
	})
	return middlewareMetrics
}

func newMiddlewareMetrics() *MiddlewareMetrics {
	counter := func(name, help string) prometheus.Counter {
		return promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "middleware",
			Name:      name,
			Help:      help,
		})
	}
	return &MiddlewareMetrics{
		rateLimitAllowed:  counter("rate_limit_allowed_total", "Total number of requests allowed by the rate limiter"),
		rateLimitRejected: counter("rate_limit_rejected_total", "Total number of requests rejected by the rate limiter"),
		bodyLimitRejected: counter("body_limit_rejected_total", "Total number of requests rejected for body size"),
		panicsRecovered:   counter("panics_recovered_total", "Total number of handler panics recovered"),
	}
}

// MustRegister registers the middleware collectors with the gateway registry.
func (m *MiddlewareMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.rateLimitAllowed,
		m.rateLimitRejected,
		m.bodyLimitRejected,
		m.panicsRecovered,
	)
}

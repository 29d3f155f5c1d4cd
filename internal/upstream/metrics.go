package upstream

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for upstream calls.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton upstream metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// MustRegister registers the collectors with the gateway's registry in
// addition to the default one promauto uses.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.breakerState,
		m.breakerTransitions,
	)
}

// Init pre-populates the label combinations for the given services.
func (m *Metrics) Init(services ...string) {
	for _, svc := range services {
		for _, o := range []string{"success", "rejected", "unreachable", "timeout", "circuit_open"} {
			m.requestsTotal.WithLabelValues(svc, o)
		}
		m.breakerState.WithLabelValues(svc)
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of upstream calls by outcome",
			},
			[]string{"service", "outcome"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Duration of upstream calls",
				Buckets: []float64{
					.005, .01, .025, .05, .1,
					.25, .5, 1, 2.5, 5, 10,
				},
			},
			[]string{"service"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "upstream",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		breakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "upstream",
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"service", "from", "to"},
		),
	}
}

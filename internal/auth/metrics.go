package auth

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification results.
const (
	resultValid   = "valid"
	resultInvalid = "invalid"
	resultError   = "error"
)

// Metrics holds Prometheus metrics for delegated authentication.
type Metrics struct {
	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	forwardsTotal        *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton auth metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// MustRegister registers the auth collectors with the gateway registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.verificationsTotal,
		m.verificationDuration,
		m.forwardsTotal,
	)
}

// Init pre-populates the label combinations.
func (m *Metrics) Init() {
	for _, r := range []string{resultValid, resultInvalid, resultError} {
		m.verificationsTotal.WithLabelValues(r)
	}
	for _, op := range []string{"login", "register"} {
		for _, r := range []string{"success", "failure"} {
			m.forwardsTotal.WithLabelValues(op, r)
		}
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		verificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "verifications_total",
				Help:      "Total number of delegated token verifications by result",
			},
			[]string{"result"},
		),
		verificationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "verification_duration_seconds",
				Help:      "Duration of delegated token verifications",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		forwardsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "forwards_total",
				Help:      "Total number of forwarded login and registration requests",
			},
			[]string{"operation", "result"},
		),
	}
}

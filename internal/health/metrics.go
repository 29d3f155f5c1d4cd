package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for health checks.
type HealthMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	dependencyUp  *prometheus.GaugeVec
	probeDuration *prometheus.HistogramVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = &HealthMetrics{
			checksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "checks_total",
					Help:      "Total number of health checks performed",
				},
				[]string{"type"},
			),
			checkStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "check_status",
					Help:      "Current health check status (1=healthy, 0=unhealthy)",
				},
				[]string{"check"},
			),
			dependencyUp: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "dependency_up",
					Help:      "Result of the last probe per dependency (1=up, 0=down)",
				},
				[]string{"service"},
			),
			probeDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "probe_duration_seconds",
					Help:      "Duration of dependency probes",
					Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"service"},
			),
		}
	})
	return healthMetricsInstance
}

// MustRegister registers the health collectors with the gateway registry.
func (m *HealthMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.checksTotal,
		m.checkStatus,
		m.dependencyUp,
		m.probeDuration,
	)
}

// Init pre-populates the label combinations for the given services.
func (m *HealthMetrics) Init(services ...string) {
	for _, checkType := range []string{"liveness", "readiness"} {
		m.checksTotal.WithLabelValues(checkType)
	}
	m.checkStatus.WithLabelValues("overall")
	for _, svc := range services {
		m.dependencyUp.WithLabelValues(svc)
	}
}

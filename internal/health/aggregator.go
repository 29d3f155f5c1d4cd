package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

var tracer = otel.Tracer("txgw/health")

// DefaultProbeTimeout applies to probes that do not carry their own.
const DefaultProbeTimeout = 3 * time.Second

// ErrProbeTimeout is reported for a probe that did not finish in time.
var ErrProbeTimeout = errors.New("health probe timed out")

// ServiceStatus is the outcome of one probe.
type ServiceStatus struct {
	Name      string        `json:"name"`
	Healthy   bool          `json:"healthy"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checkedAt"`
}

// Report is the composite result of a check. Healthy is true only when
// every service is healthy.
type Report struct {
	Healthy  bool            `json:"healthy"`
	Services []ServiceStatus `json:"services"`
}

// Aggregator probes every registered dependency concurrently and reduces
// the outcomes to one status. Results are never cached.
type Aggregator struct {
	probes         []Probe
	defaultTimeout time.Duration
	logger         observability.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDefaultTimeout sets the timeout for probes without their own.
func WithDefaultTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.defaultTimeout = d
		}
	}
}

// NewAggregator creates an aggregator over probes. The probe set is fixed
// for the aggregator's lifetime.
func NewAggregator(probes []Probe, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		probes:         append([]Probe(nil), probes...),
		defaultTimeout: DefaultProbeTimeout,
		logger:         observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Probes returns the names of the registered probes.
func (a *Aggregator) Probes() []string {
	names := make([]string, len(a.probes))
	for i, p := range a.probes {
		names[i] = p.Name()
	}
	return names
}

// Check runs all probes at once and waits for each to finish or reach its
// timeout. Total latency is bounded by the largest probe timeout.
func (a *Aggregator) Check(ctx context.Context) Report {
	ctx, span := tracer.Start(ctx, "health.Check", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	report := Report{
		Healthy:  true,
		Services: make([]ServiceStatus, len(a.probes)),
	}

	var wg sync.WaitGroup
	for i, p := range a.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			report.Services[i] = a.runProbe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	m := GetHealthMetrics()
	for _, s := range report.Services {
		if !s.Healthy {
			report.Healthy = false
			a.logger.WithContext(ctx).Warn("dependency unhealthy",
				observability.String("service", s.Name),
				observability.String("error", s.Error),
				observability.Duration("latency", s.Latency))
		}
	}
	m.checksTotal.WithLabelValues("readiness").Inc()
	m.checkStatus.WithLabelValues("overall").Set(boolToFloat(report.Healthy))

	span.SetAttributes(attribute.Bool("health.healthy", report.Healthy))
	if !report.Healthy {
		span.SetStatus(codes.Error, "one or more dependencies unavailable")
	}
	return report
}

func (a *Aggregator) timeoutFor(p Probe) time.Duration {
	if t, ok := p.(interface{ Timeout() time.Duration }); ok && t.Timeout() > 0 {
		return t.Timeout()
	}
	return a.defaultTimeout
}

// runProbe never panics or blocks past the probe's timeout, even when
// the probe ignores its context.
func (a *Aggregator) runProbe(ctx context.Context, p Probe) (status ServiceStatus) {
	timeout := a.timeoutFor(p)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status = ServiceStatus{Name: p.Name(), CheckedAt: start.UTC()}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("health probe panicked: %v", r)
			}
		}()
		done <- p.Check(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("%w after %v", ErrProbeTimeout, timeout)
	}

	status.Latency = time.Since(start)
	status.Healthy = err == nil
	if err != nil {
		status.Error = err.Error()
	}

	m := GetHealthMetrics()
	m.dependencyUp.WithLabelValues(status.Name).Set(boolToFloat(status.Healthy))
	m.probeDuration.WithLabelValues(status.Name).Observe(status.Latency.Seconds())
	return status
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

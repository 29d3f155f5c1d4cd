package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// CircuitBreaker wraps gobreaker.CircuitBreaker for one service.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger observability.Logger
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures and probes again after timeout.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, logger observability.Logger) *CircuitBreaker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	cb := &CircuitBreaker{name: name, logger: logger}

	limit := safeIntToUint32(threshold)
	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		IsSuccessful: func(err error) bool {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				return rejected.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: cb.onStateChange,
	})

	return cb
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.logger.Warn("circuit breaker state change",
		observability.String("service", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	m := GetMetrics()
	m.breakerState.WithLabelValues(name).Set(float64(to))
	m.breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()

	_, span := tracer.Start(context.Background(), "upstream.circuit_breaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("upstream.service", name),
		attribute.String("circuit_breaker.from", from.String()),
		attribute.String("circuit_breaker.to", to.String()),
	))
	span.End()
}

// Execute runs fn through the breaker. Rejections by an open or
// half-open circuit surface as *util.CircuitOpenError.
func (cb *CircuitBreaker) Execute(fn func() (*Response, error)) (*Response, error) {
	result, err := cb.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, util.NewCircuitOpenError(cb.name, cb.cb.State().String())
	}
	resp, _ := result.(*Response)
	return resp, err
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

func safeIntToUint32(n int) uint32 {
	if n < 1 {
		return 1
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

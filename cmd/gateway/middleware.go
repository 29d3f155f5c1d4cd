package main

import (
	"net/http"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/middleware"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// chainedHandler is the router wrapped in the global middleware, together
// with the stateful pieces that need stopping.
type chainedHandler struct {
	http.Handler
	rateLimiter *middleware.RateLimiter
}

func (h *chainedHandler) stop() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// buildMiddlewareChain builds the middleware chain. Order, outermost first:
// Recovery, RequestID, Logging, Tracing, Metrics, BodyLimit, RateLimit.
func buildMiddlewareChain(
	handler http.Handler,
	cfg *config.GatewayConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) *chainedHandler {
	middleware.SetGlobalIPExtractor(middleware.NewClientIPExtractor(cfg.Spec.Server.TrustedProxies))

	rateLimit, rl := middleware.RateLimitFromConfig(cfg.Spec.RateLimit, logger,
		middleware.WithRateLimiterMetrics(metrics))

	h := middleware.Chain(handler,
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		observability.TracingMiddleware(tracer),
		observability.MetricsMiddleware(metrics),
		middleware.BodyLimit(cfg.Spec.Server.MaxBodyBytes, logger),
		rateLimit,
	)

	return &chainedHandler{Handler: h, rateLimiter: rl}
}

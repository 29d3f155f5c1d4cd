package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/cache"
	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/gateway"
	"github.com/vyrodovalexey/txgw/internal/health"
	"github.com/vyrodovalexey/txgw/internal/middleware"
	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/upstream"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// application holds all application components.
type application struct {
	config  *config.GatewayConfig
	logger  observability.Logger
	gateway *gateway.Gateway
	router  *gateway.Router
	handler *chainedHandler
	metrics *observability.Metrics
	tracer  *observability.Tracer
	pool    *upstream.ConnectionPool
	cache   *cache.ResponseCache
}

// newApplication wires every component from the configuration. Nothing
// listens until runGateway starts the gateway.
func newApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	if cfg == nil {
		return nil, gateway.ErrNilConfig
	}

	metrics := observability.NewMetrics("gateway")
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	registerSubsystemMetrics(metrics.Registry(), cfg)

	tracer, err := initTracer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	pool := upstream.NewConnectionPool(upstream.PoolConfigFromConfig(cfg.Spec.Upstream))
	services := cfg.Spec.Services
	authClient := upstream.NewClientFromConfig(gateway.ServiceAuth, services.Auth, pool, logger)
	txClient := upstream.NewClientFromConfig(gateway.ServiceTransactions, services.Transactions, pool, logger)

	store, err := cache.New(cfg.Spec.Cache, logger)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	responses := cache.NewResponseCache(store, cfg.Spec.Cache.TTL.Duration(), cache.WithLogger(logger))

	aggregator := health.NewAggregator([]health.Probe{
		healthProbe(gateway.ServiceAuth, services.Auth, pool),
		healthProbe(gateway.ServiceTransactions, services.Transactions, pool),
	}, health.WithLogger(logger))

	routerOpts := []gateway.RouterOption{
		gateway.WithRouterLogger(logger),
		gateway.WithRoutes(cfg.Spec.Routes),
		gateway.WithCache(responses),
		gateway.WithHealth(aggregator),
	}
	if m := cfg.Spec.Observability.Metrics; m != nil && m.Enabled {
		routerOpts = append(routerOpts, gateway.WithMetricsHandler(m.Path, metrics.Handler()))
	}
	router := gateway.NewRouter(auth.NewDelegate(authClient, logger), txClient, routerOpts...)

	handler := buildMiddlewareChain(router, cfg, logger, metrics, tracer)

	gw, err := gateway.New(cfg, handler, gateway.WithLogger(logger))
	if err != nil {
		handler.stop()
		_ = responses.Close()
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	return &application{
		config:  cfg,
		logger:  logger,
		gateway: gw,
		router:  router,
		handler: handler,
		metrics: metrics,
		tracer:  tracer,
		pool:    pool,
		cache:   responses,
	}, nil
}

// registerSubsystemMetrics attaches the package-level collectors to the
// registry served on the metrics endpoint.
func registerSubsystemMetrics(registry *prometheus.Registry, cfg *config.GatewayConfig) {
	upstreamMetrics := upstream.GetMetrics()
	upstreamMetrics.MustRegister(registry)
	upstreamMetrics.Init(gateway.ServiceAuth, gateway.ServiceTransactions)

	authMetrics := auth.GetMetrics()
	authMetrics.MustRegister(registry)
	authMetrics.Init()

	cacheMetrics := cache.GetCacheMetrics()
	cacheMetrics.MustRegister(registry)
	if cfg.Spec.Cache != nil && cfg.Spec.Cache.Enabled {
		cacheMetrics.Init(cfg.Spec.Cache.Type)
	}

	healthMetrics := health.GetHealthMetrics()
	healthMetrics.MustRegister(registry)
	healthMetrics.Init(gateway.ServiceAuth, gateway.ServiceTransactions)

	middleware.GetMiddlewareMetrics().MustRegister(registry)
}

func healthProbe(name string, svc config.ServiceConfig, pool *upstream.ConnectionPool) health.Probe {
	return health.HTTPHealthCheck(name, util.JoinURL(svc.URL, svc.HealthPath), svc.HealthTimeout.Duration(), pool.Client())
}

// initTracer initializes the tracer. A disabled tracer costs nothing.
func initTracer(cfg *config.GatewayConfig, logger observability.Logger) (*observability.Tracer, error) {
	tracerCfg := observability.TracerConfig{
		ServiceName:  config.DefaultServiceName,
		SamplingRate: 1.0,
		Logger:       logger,
	}

	if o := cfg.Spec.Observability; o != nil && o.Tracing != nil {
		tracerCfg.Enabled = o.Tracing.Enabled
		tracerCfg.OTLPEndpoint = o.Tracing.OTLPEndpoint
		if o.Tracing.SamplingRate > 0 {
			tracerCfg.SamplingRate = o.Tracing.SamplingRate
		}
		if o.Tracing.ServiceName != "" {
			tracerCfg.ServiceName = o.Tracing.ServiceName
		}
	}

	return observability.NewTracer(tracerCfg)
}

// close releases everything newApplication acquired. The gateway must
// already be stopped.
func (a *application) close(ctx context.Context) error {
	a.handler.stop()

	var errs []error
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	a.pool.CloseIdleConnections()
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	return errors.Join(errs...)
}

package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/cache"
	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/health"
	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/upstream"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// Response headers set by the router.
const (
	HeaderCache           = "X-Cache"
	HeaderWWWAuthenticate = "WWW-Authenticate"

	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// Authenticator verifies bearer tokens and forwards account operations.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
	Login(ctx context.Context, req auth.LoginRequest) (*upstream.Response, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*upstream.Response, error)
}

// Forwarder sends a JSON payload to a backend service.
type Forwarder interface {
	PostJSON(ctx context.Context, path string, v any, header http.Header) (*upstream.Response, error)
}

// ResponseCache stores upstream answers by request fingerprint.
type ResponseCache interface {
	Lookup(ctx context.Context, fingerprint string) (*cache.Entry, bool)
	Store(ctx context.Context, fingerprint string, status int, contentType string, body []byte, ttl time.Duration)
}

// Router resolves inbound requests to routes and runs their lifecycle.
type Router struct {
	engine       *gin.Engine
	routes       []Route
	auth         Authenticator
	transactions Forwarder
	cache        ResponseCache
	health       health.Checker
	metricsPath  string
	metrics      http.Handler
	logger       observability.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger.
func WithRouterLogger(logger observability.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithCache enables response caching for cacheable routes.
func WithCache(c ResponseCache) RouterOption {
	return func(rt *Router) {
		if c != nil {
			rt.cache = c
		}
	}
}

// WithHealth serves readiness and liveness from checker.
func WithHealth(checker health.Checker) RouterOption {
	return func(rt *Router) {
		rt.health = checker
	}
}

// WithMetricsHandler serves h at path.
func WithMetricsHandler(path string, h http.Handler) RouterOption {
	return func(rt *Router) {
		rt.metricsPath = path
		rt.metrics = h
	}
}

// WithRoutes replaces the default route table settings.
func WithRoutes(cfg config.RoutesConfig) RouterOption {
	return func(rt *Router) {
		rt.routes = BuildRoutes(cfg)
	}
}

// NewRouter creates a router forwarding account operations through authn
// and transaction operations through transactions.
func NewRouter(authn Authenticator, transactions Forwarder, opts ...RouterOption) *Router {
	rt := &Router{
		routes:       BuildRoutes(config.RoutesConfig{}),
		auth:         authn,
		transactions: transactions,
		cache:        cache.NewResponseCache(nil, 0),
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(rt)
	}

	registerTagNames()
	rt.engine = gin.New()
	rt.engine.NoRoute(rt.notFound)
	rt.engine.NoMethod(rt.notFound)
	rt.registerRoutes()
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.engine.ServeHTTP(w, r)
}

// Routes returns the route table.
func (rt *Router) Routes() []Route {
	return append([]Route(nil), rt.routes...)
}

func (rt *Router) registerRoutes() {
	for _, route := range rt.routes {
		var h gin.HandlerFunc
		switch route.ID {
		case RouteRegister:
			h = rt.register(route)
		case RouteLogin:
			h = rt.login(route)
		case RouteTransactions:
			h = rt.protected(route, func(c *gin.Context, id *auth.Identity) (any, error) {
				var body TransactionBody
				if err := bindBody(c, &body, false); err != nil {
					return nil, err
				}
				return newTransactionPayload(body, id), nil
			})
		case RouteReport:
			h = rt.protected(route, func(c *gin.Context, id *auth.Identity) (any, error) {
				var body ReportBody
				if err := bindBody(c, &body, false); err != nil {
					return nil, err
				}
				return newReportPayload(body, id)
			})
		default:
			continue
		}
		rt.engine.Handle(route.Method, route.Path, h)
	}

	if rt.health != nil {
		health.NewHandler(rt.health).RegisterRoutes(rt.engine)
	}
	if rt.metrics != nil && rt.metricsPath != "" {
		rt.engine.GET(rt.metricsPath, named("metrics"), gin.WrapH(rt.metrics))
	}
}

// named records the route name for metrics and access logs.
func named(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetRouteName(c.Request.Context(), name)
	}
}

func (rt *Router) notFound(c *gin.Context) {
	rt.abort(c, NewHTTPError(http.StatusNotFound, DetailNotFound))
}

func (rt *Router) register(route Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetRouteName(c.Request.Context(), route.ID)

		var body RegisterBody
		if err := bindBody(c, &body, true); err != nil {
			rt.abort(c, err)
			return
		}

		resp, err := rt.auth.Register(c.Request.Context(), auth.RegisterRequest(body))
		if err != nil {
			rt.abort(c, err)
			return
		}
		c.Data(resp.StatusCode, resp.ContentType(), resp.Body)
	}
}

func (rt *Router) login(route Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetRouteName(c.Request.Context(), route.ID)

		var body LoginBody
		if err := bindBody(c, &body, true); err != nil {
			rt.abort(c, err)
			return
		}

		resp, err := rt.auth.Login(c.Request.Context(), auth.LoginRequest(body))
		if err != nil {
			rt.abort(c, err)
			return
		}
		c.Data(resp.StatusCode, resp.ContentType(), resp.Body)
	}
}

// payloadBuilder binds the inbound body and returns the upstream payload.
type payloadBuilder func(c *gin.Context, id *auth.Identity) (any, error)

// protected runs verification, then the cache lookup, then at most one
// upstream call, strictly in that order.
func (rt *Router) protected(route Route, build payloadBuilder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		util.SetRouteName(ctx, route.ID)

		token, err := auth.BearerToken(c.Request)
		if err != nil {
			rt.abort(c, err)
			return
		}
		identity, err := rt.auth.Verify(ctx, token)
		if err != nil {
			rt.abort(c, err)
			return
		}
		ctx = auth.ContextWithIdentity(ctx, identity)
		c.Request = c.Request.WithContext(ctx)

		payload, err := build(c, identity)
		if err != nil {
			rt.abort(c, err)
			return
		}

		var fingerprint string
		if route.Cacheable {
			fingerprint, err = cache.Fingerprint(route.ID, identity.Subject, payload)
			if err != nil {
				// Unkeyable payloads are simply not cached.
				rt.logger.WithContext(ctx).Warn("fingerprint request",
					observability.String("route", route.ID),
					observability.Error(err))
			} else if entry, ok := rt.cache.Lookup(ctx, fingerprint); ok {
				markCache(ctx, CacheHit)
				c.Header(HeaderCache, CacheHit)
				c.Data(entry.Status, entry.ContentType, entry.Body)
				return
			}
		}

		header := http.Header{}
		header.Set(upstream.HeaderAuthorization, "Bearer "+identity.Token)
		resp, err := rt.transactions.PostJSON(ctx, route.UpstreamPath, payload, header)
		if err != nil {
			rt.abort(c, err)
			return
		}

		if fingerprint != "" {
			markCache(ctx, CacheMiss)
			c.Header(HeaderCache, CacheMiss)
			rt.cache.Store(ctx, fingerprint, resp.StatusCode, resp.ContentType(), resp.Body, route.CacheTTL)
		}
		c.Data(resp.StatusCode, resp.ContentType(), resp.Body)
	}
}

func markCache(ctx context.Context, result string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("gateway.cache", result))
}

// abort translates err and writes the {"detail": ...} body. Transport
// failures are logged here since their cause never reaches the client.
func (rt *Router) abort(c *gin.Context, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		err = verr.HTTPError()
	}

	httpErr := Translate(err)
	switch {
	case httpErr.Status == http.StatusUnauthorized:
		c.Header(HeaderWWWAuthenticate, "Bearer")
	case httpErr.Status >= http.StatusInternalServerError && !errors.Is(err, upstream.ErrRejected):
		ctx := c.Request.Context()
		fields := []observability.Field{
			observability.String("route", util.RouteNameFromContext(ctx)),
			observability.Int("status", httpErr.Status),
			observability.Error(err),
		}
		if id, ok := auth.IdentityFromContext(ctx); ok {
			fields = append(fields, observability.String("subject", id.Subject))
		}
		rt.logger.WithContext(ctx).Error("request failed", fields...)
	}

	_ = c.Error(err)
	c.Data(httpErr.Status, "application/json", httpErr.Body())
	c.Abort()
}

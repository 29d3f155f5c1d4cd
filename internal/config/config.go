// Package config provides configuration types and loading for the gateway.
package config

// GatewayConfig is the root configuration document.
type GatewayConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       GatewaySpec `yaml:"spec" json:"spec"`
}

// Metadata contains descriptive information about the gateway instance.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// GatewaySpec contains the gateway specification.
type GatewaySpec struct {
	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server" json:"server"`

	// Services lists the backend services the gateway forwards to.
	Services ServicesConfig `yaml:"services" json:"services"`

	// Upstream configures the shared outbound connection pool.
	Upstream UpstreamConfig `yaml:"upstream,omitempty" json:"upstream,omitempty"`

	// Cache configures the response cache.
	Cache *CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`

	// Routes tunes the forwarded transaction routes.
	Routes RoutesConfig `yaml:"routes,omitempty" json:"routes,omitempty"`

	// RateLimit configures inbound rate limiting.
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Observability configures logging, tracing and metrics.
	Observability *ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address" json:"address"`

	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`

	// MaxBodyBytes caps inbound request bodies.
	MaxBodyBytes int64 `yaml:"maxBodyBytes,omitempty" json:"maxBodyBytes,omitempty"`

	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is honored
	// when resolving the client address.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
}

// ServicesConfig holds the two backend services.
type ServicesConfig struct {
	Auth         ServiceConfig `yaml:"auth" json:"auth"`
	Transactions ServiceConfig `yaml:"transactions" json:"transactions"`
}

// ServiceConfig describes a single backend service.
type ServiceConfig struct {
	// URL is the base URL of the service, e.g. "http://auth_service:82".
	URL string `yaml:"url" json:"url"`

	// Timeout bounds a single forwarded call.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// HealthPath is the liveness endpoint probed by readiness checks.
	HealthPath string `yaml:"healthPath,omitempty" json:"healthPath,omitempty"`

	// HealthTimeout bounds a single health probe.
	HealthTimeout Duration `yaml:"healthTimeout,omitempty" json:"healthTimeout,omitempty"`

	// CircuitBreaker optionally short-circuits calls to a failing service.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures a per-service circuit breaker.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Timeout is how long the circuit stays open before probing again.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// UpstreamConfig configures the pooled outbound transport.
type UpstreamConfig struct {
	MaxIdleConns        int      `yaml:"maxIdleConns,omitempty" json:"maxIdleConns,omitempty"`
	MaxIdleConnsPerHost int      `yaml:"maxIdleConnsPerHost,omitempty" json:"maxIdleConnsPerHost,omitempty"`
	MaxConnsPerHost     int      `yaml:"maxConnsPerHost,omitempty" json:"maxConnsPerHost,omitempty"`
	IdleConnTimeout     Duration `yaml:"idleConnTimeout,omitempty" json:"idleConnTimeout,omitempty"`
}

// RoutesConfig tunes the protected transaction routes.
type RoutesConfig struct {
	Transactions RouteConfig `yaml:"transactions,omitempty" json:"transactions,omitempty"`
	Report       RouteConfig `yaml:"report,omitempty" json:"report,omitempty"`
}

// RouteConfig tunes a single forwarded route.
type RouteConfig struct {
	// UpstreamPath is the path on the transaction service.
	UpstreamPath string `yaml:"upstreamPath,omitempty" json:"upstreamPath,omitempty"`

	// Cacheable enables response caching for the route. Defaults to true.
	Cacheable *bool `yaml:"cacheable,omitempty" json:"cacheable,omitempty"`

	// CacheTTL overrides the cache default TTL for this route.
	CacheTTL Duration `yaml:"cacheTTL,omitempty" json:"cacheTTL,omitempty"`
}

// IsCacheable reports whether responses for the route may be cached.
func (r RouteConfig) IsCacheable() bool {
	return r.Cacheable == nil || *r.Cacheable
}

// RateLimitConfig configures inbound rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int  `yaml:"burst" json:"burst"`
	PerClient         bool `yaml:"perClient,omitempty" json:"perClient,omitempty"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Tracing *TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

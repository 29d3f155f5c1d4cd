package config

import "time"

// Default values applied to omitted configuration fields.
const (
	DefaultAPIVersion = "gateway.txgw.io/v1"
	DefaultKind       = "Gateway"
	DefaultName       = "txgw"

	DefaultServerAddress   = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1 << 20

	DefaultAuthServiceURL        = "http://auth_service:82"
	DefaultTransactionServiceURL = "http://transactions_service:83"
	DefaultServiceTimeout        = 10 * time.Second
	DefaultHealthPath            = "/healthz/ready"
	DefaultHealthTimeout         = 3 * time.Second

	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second

	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second

	DefaultCacheTTL        = time.Minute
	DefaultCacheMaxEntries = 10000
	DefaultRedisKeyPrefix  = "txgw:"
	DefaultLevelDBPath     = "./data/cache"
	DefaultSweepInterval   = time.Minute

	DefaultTransactionsPath = "/transactions/"
	DefaultReportPath       = "/transactions/report/"

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"
	DefaultServiceName = "txgw"
)

// DefaultConfig returns a fully defaulted configuration suitable for running
// against the stock service addresses.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		Spec: GatewaySpec{
			Cache: &CacheConfig{
				Enabled: true,
				Type:    CacheTypeMemory,
			},
			Observability: &ObservabilityConfig{
				Metrics: &MetricsConfig{Enabled: true},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills omitted fields in place.
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = DefaultKind
	}
	if cfg.Metadata.Name == "" {
		cfg.Metadata.Name = DefaultName
	}

	spec := &cfg.Spec
	applyServerDefaults(&spec.Server)
	applyServiceDefaults(&spec.Services.Auth, DefaultAuthServiceURL)
	applyServiceDefaults(&spec.Services.Transactions, DefaultTransactionServiceURL)
	applyUpstreamDefaults(&spec.Upstream)

	// An omitted cache section means the in-memory cache.
	if spec.Cache == nil {
		spec.Cache = &CacheConfig{Enabled: true}
	}
	applyCacheDefaults(spec.Cache)

	if spec.Routes.Transactions.UpstreamPath == "" {
		spec.Routes.Transactions.UpstreamPath = DefaultTransactionsPath
	}
	if spec.Routes.Report.UpstreamPath == "" {
		spec.Routes.Report.UpstreamPath = DefaultReportPath
	}

	if spec.Observability == nil {
		spec.Observability = &ObservabilityConfig{}
	}
	applyObservabilityDefaults(spec.Observability)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Address == "" {
		s.Address = DefaultServerAddress
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyServiceDefaults(s *ServiceConfig, url string) {
	if s.URL == "" {
		s.URL = url
	}
	if s.Timeout <= 0 {
		s.Timeout = Duration(DefaultServiceTimeout)
	}
	if s.HealthPath == "" {
		s.HealthPath = DefaultHealthPath
	}
	if s.HealthTimeout <= 0 {
		s.HealthTimeout = Duration(DefaultHealthTimeout)
	}
	if cb := s.CircuitBreaker; cb != nil {
		if cb.Threshold <= 0 {
			cb.Threshold = DefaultBreakerThreshold
		}
		if cb.Timeout <= 0 {
			cb.Timeout = Duration(DefaultBreakerTimeout)
		}
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	if u.MaxIdleConns <= 0 {
		u.MaxIdleConns = DefaultMaxIdleConns
	}
	if u.MaxIdleConnsPerHost <= 0 {
		u.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if u.IdleConnTimeout <= 0 {
		u.IdleConnTimeout = Duration(DefaultIdleConnTimeout)
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Type == "" {
		c.Type = CacheTypeMemory
	}
	if c.TTL <= 0 {
		c.TTL = Duration(DefaultCacheTTL)
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Redis != nil && c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Type == CacheTypeLevelDB {
		if c.LevelDB == nil {
			c.LevelDB = &LevelDBCacheConfig{}
		}
		if c.LevelDB.Path == "" {
			c.LevelDB.Path = DefaultLevelDBPath
		}
		if c.LevelDB.SweepInterval <= 0 {
			c.LevelDB.SweepInterval = Duration(DefaultSweepInterval)
		}
	}
}

func applyObservabilityDefaults(o *ObservabilityConfig) {
	if o.Logging == nil {
		o.Logging = &LoggingConfig{}
	}
	if o.Logging.Level == "" {
		o.Logging.Level = DefaultLogLevel
	}
	if o.Logging.Format == "" {
		o.Logging.Format = DefaultLogFormat
	}
	if o.Tracing == nil {
		o.Tracing = &TracingConfig{}
	}
	if o.Tracing.ServiceName == "" {
		o.Tracing.ServiceName = DefaultServiceName
	}
	if o.Metrics == nil {
		o.Metrics = &MetricsConfig{Enabled: true}
	}
	if o.Metrics.Path == "" {
		o.Metrics.Path = DefaultMetricsPath
	}
}

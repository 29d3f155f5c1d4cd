package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/vyrodovalexey/txgw/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(cfg *GatewayConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(cfg)
	v.validateServer(&cfg.Spec.Server)
	v.validateService(&cfg.Spec.Services.Auth, "spec.services.auth")
	v.validateService(&cfg.Spec.Services.Transactions, "spec.services.transactions")
	v.validateRoute(&cfg.Spec.Routes.Transactions, "spec.routes.transactions")
	v.validateRoute(&cfg.Spec.Routes.Report, "spec.routes.report")

	if cfg.Spec.Cache != nil {
		v.validateCache(cfg.Spec.Cache, "spec.cache")
	}
	if cfg.Spec.RateLimit != nil {
		v.validateRateLimit(cfg.Spec.RateLimit, "spec.rateLimit")
	}
	if cfg.Spec.Observability != nil {
		v.validateObservability(cfg.Spec.Observability, "spec.observability")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(cfg *GatewayConfig) {
	if cfg.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(cfg.APIVersion, "gateway.txgw.io/") {
		v.addError("apiVersion", "apiVersion must start with 'gateway.txgw.io/'")
	}

	if cfg.Kind == "" {
		v.addError("kind", "kind is required")
	} else if cfg.Kind != DefaultKind {
		v.addError("kind", "kind must be 'Gateway'")
	}

	if cfg.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("spec.server.address", "address is required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.ShutdownTimeout < 0 {
		v.addError("spec.server", "timeouts must not be negative")
	}
	if s.MaxBodyBytes < 0 {
		v.addError("spec.server.maxBodyBytes", "must not be negative")
	}
	for i, proxy := range s.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			v.addError(fmt.Sprintf("spec.server.trustedProxies[%d]", i), "must be an IP address or CIDR")
		}
	}
}

func (v *Validator) validateService(s *ServiceConfig, path string) {
	if s.URL == "" {
		v.addError(path+".url", "url is required")
	} else if err := util.ValidateURL(s.URL); err != nil {
		v.addError(path+".url", err.Error())
	}

	if s.Timeout <= 0 {
		v.addError(path+".timeout", "timeout must be positive")
	}
	if s.HealthTimeout <= 0 {
		v.addError(path+".healthTimeout", "healthTimeout must be positive")
	}
	if s.HealthPath != "" && !strings.HasPrefix(s.HealthPath, "/") {
		v.addError(path+".healthPath", "healthPath must start with '/'")
	}

	if cb := s.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold <= 0 {
			v.addError(path+".circuitBreaker.threshold", "threshold must be positive")
		}
		if cb.Timeout <= 0 {
			v.addError(path+".circuitBreaker.timeout", "timeout must be positive")
		}
	}
}

func (v *Validator) validateRoute(r *RouteConfig, path string) {
	if r.UpstreamPath != "" && !strings.HasPrefix(r.UpstreamPath, "/") {
		v.addError(path+".upstreamPath", "upstreamPath must start with '/'")
	}
	if r.CacheTTL < 0 {
		v.addError(path+".cacheTTL", "cacheTTL must not be negative")
	}
}

func (v *Validator) validateCache(c *CacheConfig, path string) {
	if !c.Enabled {
		return
	}
	if c.TTL <= 0 {
		v.addError(path+".ttl", "ttl must be positive")
	}

	switch c.Type {
	case CacheTypeMemory:
		if c.MaxEntries <= 0 {
			v.addError(path+".maxEntries", "maxEntries must be positive")
		}
	case CacheTypeRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			v.addError(path+".redis.url", "redis url is required for redis cache")
		}
	case CacheTypeLevelDB:
		if c.LevelDB == nil || c.LevelDB.Path == "" {
			v.addError(path+".leveldb.path", "path is required for leveldb cache")
		}
	default:
		v.addError(path+".type", fmt.Sprintf("unsupported cache type %q", c.Type))
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig, path string) {
	if !rl.Enabled {
		return
	}
	if rl.RequestsPerSecond <= 0 {
		v.addError(path+".requestsPerSecond", "requestsPerSecond must be positive")
	}
	if rl.Burst <= 0 {
		v.addError(path+".burst", "burst must be positive")
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig, path string) {
	if o.Logging != nil {
		switch strings.ToLower(o.Logging.Level) {
		case "", "debug", "info", "warn", "error":
		default:
			v.addError(path+".logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level))
		}
		switch strings.ToLower(o.Logging.Format) {
		case "", "json", "console":
		default:
			v.addError(path+".logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format))
		}
	}

	if t := o.Tracing; t != nil {
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			v.addError(path+".tracing.samplingRate", "samplingRate must be between 0 and 1")
		}
		if t.Enabled && t.OTLPEndpoint == "" {
			v.addError(path+".tracing.otlpEndpoint", "otlpEndpoint is required when tracing is enabled")
		}
	}

	if m := o.Metrics; m != nil && m.Enabled && !strings.HasPrefix(m.Path, "/") {
		v.addError(path+".metrics.path", "path must start with '/'")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

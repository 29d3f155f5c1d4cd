package cache

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheDisabled indicates that caching is disabled.
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "txgw/cache"

// Backend label values.
const (
	backendMemory  = "memory"
	backendRedis   = "redis"
	backendLevelDB = "leveldb"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns ErrCacheMiss if the key is not found or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A TTL of 0 uses the
	// backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// New creates the backend selected by the configuration.
func New(cfg *config.CacheConfig, logger observability.Logger) (Cache, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	if !cfg.Enabled {
		return newDisabledCache(), nil
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return newMemoryCache(cfg, logger), nil
	case config.CacheTypeRedis:
		return newRedisCache(cfg, logger)
	case config.CacheTypeLevelDB:
		return newLevelDBCache(cfg, logger)
	default:
		return nil, errors.New("unknown cache type: " + cfg.Type)
	}
}

// disabledCache is a cache that always returns ErrCacheDisabled.
type disabledCache struct{}

func newDisabledCache() Cache {
	return &disabledCache{}
}

func (c *disabledCache) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrCacheDisabled
}

func (c *disabledCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return ErrCacheDisabled
}

func (c *disabledCache) Delete(_ context.Context, _ string) error {
	return ErrCacheDisabled
}

func (c *disabledCache) Close() error {
	return nil
}

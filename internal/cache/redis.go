package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

// redisCache stores entries in Redis with native key expiry.
type redisCache struct {
	logger     observability.Logger
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration

	hits   int64
	misses int64
}

func newRedisCache(cfg *config.CacheConfig, logger observability.Logger) (*redisCache, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis URL is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %w", ErrInvalidConfig, err)
	}
	applyRedisPoolOptions(opts, cfg.Redis)

	// An unreachable server at startup is not fatal: the client reconnects
	// on demand and lookups miss until it does.
	client := redis.NewClient(opts)
	if err := pingRedis(client); err != nil {
		logger.Warn("redis unreachable, cache will miss until it recovers",
			observability.String("addr", opts.Addr),
			observability.Error(err))
	}

	c := &redisCache{
		logger:     logger,
		client:     client,
		keyPrefix:  resolveKeyPrefix(cfg.Redis.KeyPrefix),
		defaultTTL: cfg.TTL.OrDefault(config.DefaultCacheTTL),
	}

	logger.Info("redis cache initialized",
		observability.String("addr", opts.Addr),
		observability.String("keyPrefix", c.keyPrefix),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c, nil
}

func applyRedisPoolOptions(opts *redis.Options, redisCfg *config.RedisCacheConfig) {
	if redisCfg.PoolSize > 0 {
		opts.PoolSize = redisCfg.PoolSize
	}
	if redisCfg.DialTimeout > 0 {
		opts.DialTimeout = redisCfg.DialTimeout.Duration()
	}
	if redisCfg.ReadTimeout > 0 {
		opts.ReadTimeout = redisCfg.ReadTimeout.Duration()
	}
	if redisCfg.WriteTimeout > 0 {
		opts.WriteTimeout = redisCfg.WriteTimeout.Duration()
	}
}

func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

func resolveKeyPrefix(prefix string) string {
	if prefix == "" {
		return config.DefaultRedisKeyPrefix
	}
	return prefix
}

func (c *redisCache) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", backendRedis),
			attribute.String("cache.key", key),
		),
	)
}

func (c *redisCache) observe(op string, start time.Time, span trace.Span, err error) {
	GetCacheMetrics().operationDuration.WithLabelValues(backendRedis, op).
		Observe(time.Since(start).Seconds())
	if err != nil {
		GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, op).Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

// Get retrieves a value from Redis.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "Get", key)
	defer span.End()
	start := time.Now()

	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	switch {
	case err == nil:
		c.observe("get", start, span, nil)
		atomic.AddInt64(&c.hits, 1)
		GetCacheMetrics().hitsTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(
			attribute.Bool("cache.hit", true),
			attribute.Int("cache.value_size", len(val)),
		)
		return val, nil
	case errors.Is(err, redis.Nil):
		c.observe("get", start, span, nil)
		atomic.AddInt64(&c.misses, 1)
		GetCacheMetrics().missesTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		c.observe("get", start, span, err)
		return nil, fmt.Errorf("redis get: %w", err)
	}
}

// Set stores a value with a Redis-side expiry.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", key)
	defer span.End()
	start := time.Now()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
	c.observe("set", start, span, err)
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value from Redis.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	ctx, span := c.startSpan(ctx, "Delete", key)
	defer span.End()
	start := time.Now()

	err := c.client.Del(ctx, c.keyPrefix+key).Err()
	c.observe("delete", start, span, err)
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (c *redisCache) Close() error {
	c.logger.Info("redis cache closing")
	return c.client.Close()
}

// Stats returns cache statistics.
func (c *redisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

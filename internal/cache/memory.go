package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// memoryCleanupInterval is how often expired entries are purged.
const memoryCleanupInterval = time.Minute

// memoryCache is an in-process LRU with lazy expiry.
type memoryCache struct {
	logger     observability.Logger
	maxEntries int
	defaultTTL time.Duration

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List

	hits   int64
	misses int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func newMemoryCache(cfg *config.CacheConfig, logger observability.Logger) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = config.DefaultCacheMaxEntries
	}

	c := &memoryCache{
		logger:     logger,
		maxEntries: maxEntries,
		defaultTTL: cfg.TTL.OrDefault(config.DefaultCacheTTL),
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		stopCh:     make(chan struct{}),
	}

	go c.cleanupLoop(memoryCleanupInterval)

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendMemory),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetCacheMetrics().operationDuration.WithLabelValues(
			backendMemory, "get",
		).Observe(time.Since(start).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && elem.Value.(*memoryEntry).expired(time.Now()) {
		c.removeElement(elem)
		ok = false
	}
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		GetCacheMetrics().missesTotal.WithLabelValues(backendMemory).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}

	c.lru.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)

	atomic.AddInt64(&c.hits, 1)
	GetCacheMetrics().hitsTotal.WithLabelValues(backendMemory).Inc()
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(entry.value)),
	)

	return append([]byte(nil), entry.value...), nil
}

// Set stores a value, replacing any previous entry for the key.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendMemory),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetCacheMetrics().operationDuration.WithLabelValues(
			backendMemory, "set",
		).Observe(time.Since(start).Seconds())
	}()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	// Entries are replaced wholesale, never mutated, so readers holding
	// an old value slice are unaffected.
	entry := &memoryEntry{
		key:       key,
		value:     append([]byte(nil), value...),
		expiresAt: start.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.lru.PushFront(entry)
	for c.lru.Len() > c.maxEntries {
		c.evictOldest()
	}

	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.lru.Len()))

	c.logger.Debug("cache set",
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", c.lru.Len()))

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Delete",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendMemory),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.lru.Len()))
	}
	return nil
}

// Close stops the cleanup goroutine and drops every entry.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(0)

	c.logger.Info("memory cache closed")
	return nil
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	size := int64(c.lru.Len())
	c.mu.Unlock()

	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

// evictOldest must be called with the lock held.
func (c *memoryCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.removeElement(elem)
		GetCacheMetrics().evictionsTotal.WithLabelValues(backendMemory).Inc()
	}
}

// removeElement must be called with the lock held.
func (c *memoryCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry).key)
}

func (c *memoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}

	if removed > 0 {
		GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.lru.Len()))
		c.logger.Debug("cache cleanup completed", observability.Int("removed", removed))
	}
	return removed
}

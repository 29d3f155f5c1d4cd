package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlutil "github.com/syndtr/goleveldb/leveldb/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// leveldbKeyPrefix namespaces cache records inside the database.
var leveldbKeyPrefix = []byte("entry/")

// expiryHeaderLen is the size of the big-endian expiry stamp that
// precedes every stored value.
const expiryHeaderLen = 8

// levelDBCache keeps entries on disk. Expiry is checked on every read;
// the sweeper only reclaims space.
type levelDBCache struct {
	logger     observability.Logger
	db         *leveldb.DB
	path       string
	defaultTTL time.Duration

	hits   int64
	misses int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newLevelDBCache(cfg *config.CacheConfig, logger observability.Logger) (*levelDBCache, error) {
	if cfg.LevelDB == nil || cfg.LevelDB.Path == "" {
		return nil, fmt.Errorf("%w: leveldb path is required", ErrInvalidConfig)
	}

	db, err := leveldb.OpenFile(cfg.LevelDB.Path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open leveldb cache at %s: %w", cfg.LevelDB.Path, err)
	}

	c := &levelDBCache{
		logger:     logger,
		db:         db,
		path:       cfg.LevelDB.Path,
		defaultTTL: cfg.TTL.OrDefault(config.DefaultCacheTTL),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	go c.sweepLoop(cfg.LevelDB.SweepInterval.OrDefault(config.DefaultSweepInterval))

	logger.Info("leveldb cache initialized",
		observability.String("path", c.path),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c, nil
}

func leveldbKey(key string) []byte {
	return append(append([]byte(nil), leveldbKeyPrefix...), key...)
}

func encodeRecord(value []byte, expiresAt time.Time) []byte {
	buf := make([]byte, expiryHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiresAt.UnixNano())) //nolint:gosec // timestamps are positive
	copy(buf[expiryHeaderLen:], value)
	return buf
}

func decodeRecord(raw []byte) (value []byte, expiresAt time.Time, ok bool) {
	if len(raw) < expiryHeaderLen {
		return nil, time.Time{}, false
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:expiryHeaderLen])) //nolint:gosec // written by encodeRecord
	return raw[expiryHeaderLen:], time.Unix(0, nanos), true
}

func (c *levelDBCache) startSpan(ctx context.Context, op, key string) trace.Span {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendLevelDB),
			attribute.String("cache.key", key),
		),
	)
	return span
}

func (c *levelDBCache) observe(op string, start time.Time, span trace.Span, err error) {
	GetCacheMetrics().operationDuration.WithLabelValues(backendLevelDB, op).
		Observe(time.Since(start).Seconds())
	if err != nil {
		GetCacheMetrics().errorsTotal.WithLabelValues(backendLevelDB, op).Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

func (c *levelDBCache) miss(span trace.Span) error {
	atomic.AddInt64(&c.misses, 1)
	GetCacheMetrics().missesTotal.WithLabelValues(backendLevelDB).Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return ErrCacheMiss
}

// Get reads a record and treats an expired one as absent.
func (c *levelDBCache) Get(ctx context.Context, key string) ([]byte, error) {
	span := c.startSpan(ctx, "Get", key)
	defer span.End()
	start := time.Now()

	raw, err := c.db.Get(leveldbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		c.observe("get", start, span, nil)
		return nil, c.miss(span)
	}
	if err != nil {
		c.observe("get", start, span, err)
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	c.observe("get", start, span, nil)

	value, expiresAt, ok := decodeRecord(raw)
	if !ok || !start.Before(expiresAt) {
		return nil, c.miss(span)
	}

	atomic.AddInt64(&c.hits, 1)
	GetCacheMetrics().hitsTotal.WithLabelValues(backendLevelDB).Inc()
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(value)),
	)
	return value, nil
}

// Set writes a record stamped with its expiry time.
func (c *levelDBCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	span := c.startSpan(ctx, "Set", key)
	defer span.End()
	start := time.Now()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	err := c.db.Put(leveldbKey(key), encodeRecord(value, start.Add(ttl)), nil)
	c.observe("set", start, span, err)
	if err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

// Delete removes a record.
func (c *levelDBCache) Delete(ctx context.Context, key string) error {
	span := c.startSpan(ctx, "Delete", key)
	defer span.End()
	start := time.Now()

	err := c.db.Delete(leveldbKey(key), nil)
	c.observe("delete", start, span, err)
	if err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

// Close stops the sweeper and closes the database.
func (c *levelDBCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh

	c.logger.Info("leveldb cache closing", observability.String("path", c.path))
	return c.db.Close()
}

// Stats returns cache statistics.
func (c *levelDBCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

func (c *levelDBCache) sweepLoop(interval time.Duration) {
	defer close(c.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.sweep(time.Now()); err != nil {
				c.logger.Warn("leveldb cache sweep failed", observability.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// sweep deletes every record that has expired at now.
func (c *levelDBCache) sweep(now time.Time) (int, error) {
	iter := c.db.NewIterator(lvlutil.BytesPrefix(leveldbKeyPrefix), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		_, expiresAt, ok := decodeRecord(iter.Value())
		if !ok || !now.Before(expiresAt) {
			batch.Delete(iter.Key())
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, err
	}

	removed := batch.Len()
	if removed == 0 {
		return 0, nil
	}
	if err := c.db.Write(batch, nil); err != nil {
		return 0, err
	}

	GetCacheMetrics().evictionsTotal.WithLabelValues(backendLevelDB).Add(float64(removed))
	c.logger.Debug("leveldb cache sweep completed", observability.Int("removed", removed))
	return removed, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

// Entry is a cached upstream answer.
type Entry struct {
	Status      int           `json:"status"`
	Body        []byte        `json:"body"`
	ContentType string        `json:"contentType,omitempty"`
	InsertedAt  time.Time     `json:"insertedAt"`
	TTL         time.Duration `json:"ttl"`
}

// Fresh reports whether the entry may still be served at now.
func (e *Entry) Fresh(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) < e.TTL
}

// ResponseCache maps request fingerprints to upstream answers on top of a
// byte store. Store failures never reach the caller: a broken backend
// behaves as a cache that always misses.
type ResponseCache struct {
	store      Cache
	defaultTTL time.Duration
	logger     observability.Logger
	now        func() time.Time
}

// ResponseCacheOption configures a ResponseCache.
type ResponseCacheOption func(*ResponseCache)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) ResponseCacheOption {
	return func(rc *ResponseCache) {
		if logger != nil {
			rc.logger = logger
		}
	}
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) ResponseCacheOption {
	return func(rc *ResponseCache) {
		rc.now = now
	}
}

// NewResponseCache wraps store. defaultTTL applies when Store is called
// without a TTL.
func NewResponseCache(store Cache, defaultTTL time.Duration, opts ...ResponseCacheOption) *ResponseCache {
	if store == nil {
		store = newDisabledCache()
	}
	rc := &ResponseCache{
		store:      store,
		defaultTTL: defaultTTL,
		logger:     observability.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Lookup returns the entry stored under fingerprint if it is still fresh.
func (rc *ResponseCache) Lookup(ctx context.Context, fingerprint string) (*Entry, bool) {
	raw, err := rc.store.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheDisabled) {
			rc.logger.WithContext(ctx).Warn("response cache lookup failed, treating as miss",
				observability.String("fingerprint", fingerprint),
				observability.Error(err))
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		rc.logger.WithContext(ctx).Warn("discarding undecodable cache entry",
			observability.String("fingerprint", fingerprint),
			observability.Error(err))
		_ = rc.store.Delete(ctx, fingerprint)
		return nil, false
	}

	// The backend may not have reclaimed the key yet.
	if !entry.Fresh(rc.now()) {
		return nil, false
	}
	return &entry, true
}

// Store records an answer under fingerprint, replacing any previous one.
// A non-positive ttl selects the default.
func (rc *ResponseCache) Store(
	ctx context.Context,
	fingerprint string,
	status int,
	contentType string,
	body []byte,
	ttl time.Duration,
) {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(Entry{
		Status:      status,
		Body:        body,
		ContentType: contentType,
		InsertedAt:  rc.now(),
		TTL:         ttl,
	})
	if err != nil {
		rc.logger.WithContext(ctx).Warn("encode cache entry", observability.Error(err))
		return
	}

	if err := rc.store.Set(ctx, fingerprint, raw, ttl); err != nil && !errors.Is(err, ErrCacheDisabled) {
		rc.logger.WithContext(ctx).Warn("response cache store failed",
			observability.String("fingerprint", fingerprint),
			observability.Error(err))
	}
}

// Close releases the underlying store.
func (rc *ResponseCache) Close() error {
	return rc.store.Close()
}

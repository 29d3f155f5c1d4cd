package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// Rate limiter defaults.
const (
	// DefaultClientTTL is how long an idle per-client limiter is kept.
	DefaultClientTTL = 10 * time.Minute

	MinCleanupInterval = 10 * time.Second
	MaxCleanupInterval = time.Minute
)

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter is a token bucket limiter, shared or keyed by client address.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	mu        sync.Mutex
	rps       int
	burst     int
	clientTTL time.Duration
	logger    observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		if logger != nil {
			rl.logger = logger
		}
	}
}

// WithRateLimiterMetrics records rejections on the gateway request metrics.
func WithRateLimiterMetrics(m *observability.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.metrics = m
	}
}

// WithClientTTL sets how long idle per-client limiters are retained.
func WithClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if ttl > 0 {
			rl.clientTTL = ttl
		}
	}
}

// NewRateLimiter creates a limiter admitting rps requests per second with
// the given burst.
func NewRateLimiter(rps, burst int, perClient bool, opts ...RateLimiterOption) *RateLimiter {
	if burst <= 0 {
		burst = rps
	}
	rl := &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		clientTTL: DefaultClientTTL,
		logger:    observability.NopLogger(),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether a request from clientIP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if !rl.perClient {
		return rl.limiter.Allow()
	}

	now := rl.now()
	rl.mu.Lock()
	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// Clients returns the number of tracked per-client limiters.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// CleanupOldClients drops per-client limiters idle for longer than maxAge.
func (rl *RateLimiter) CleanupOldClients(maxAge time.Duration) int {
	now := rl.now()

	rl.mu.Lock()
	removed := 0
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			delete(rl.clients, ip)
			removed++
		}
	}
	remaining := len(rl.clients)
	rl.mu.Unlock()

	if removed > 0 {
		rl.logger.Debug("cleaned up idle rate limiter entries",
			observability.Int("removed", removed),
			observability.Int("remaining", remaining),
		)
	}
	return removed
}

// StartAutoCleanup runs CleanupOldClients until Stop is called.
func (rl *RateLimiter) StartAutoCleanup() {
	interval := rl.clientTTL / 2
	if interval > MaxCleanupInterval {
		interval = MaxCleanupInterval
	}
	if interval < MinCleanupInterval {
		interval = MinCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.CleanupOldClients(rl.clientTTL)
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// RateLimit returns a middleware answering 429 {"detail":"rate limit exceeded"}
// with Retry-After when rl refuses a request.
func RateLimit(rl *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			m := GetMiddlewareMetrics()

			if !rl.Allow(clientIP) {
				rl.logger.WithContext(r.Context()).Warn("rate limit exceeded",
					observability.String("client_ip", clientIP),
					observability.String("path", r.URL.Path),
				)
				m.rateLimitRejected.Inc()
				if rl.metrics != nil {
					rl.metrics.RecordRateLimitHit(util.RouteNameFromContext(r.Context()))
				}

				w.Header().Set(HeaderRetryAfter, "1")
				writeJSONError(w, http.StatusTooManyRequests, ErrRateLimitExceeded)
				return
			}

			m.rateLimitAllowed.Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitFromConfig builds the middleware from config. With limiting
// disabled it returns a pass-through and a nil limiter; otherwise the
// caller owns the limiter and must Stop it on shutdown.
func RateLimitFromConfig(
	cfg *config.RateLimitConfig,
	logger observability.Logger,
	opts ...RateLimiterOption,
) (Middleware, *RateLimiter) {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	opts = append([]RateLimiterOption{WithRateLimiterLogger(logger)}, opts...)
	rl := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.PerClient, opts...)
	if cfg.PerClient {
		rl.StartAutoCleanup()
	}
	return RateLimit(rl), rl
}

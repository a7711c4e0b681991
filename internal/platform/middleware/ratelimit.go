package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Decision is a limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) take(now time.Time) (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, b.tokens
	}
	return false, b.tokens
}

func (b *tokenBucket) retryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return time.Second
	}
	return time.Duration((1-b.tokens)/b.refillRate*float64(time.Second)) + time.Second
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	cfg     RateLimitConfig
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, buckets: make(map[string]*tokenBucket)}
}

func (l *MemoryLimiter) bucket(key string) *tokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = newTokenBucket(l.cfg.RequestsPerSecond, l.cfg.BurstSize)
	l.buckets[key] = b
	return b
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	b := l.bucket(key)
	ok, left := b.take(time.Now())
	d := Decision{
		Allowed:   ok,
		Limit:     int(math.Round(l.cfg.RequestsPerSecond)),
		Remaining: int(left),
	}
	if !ok {
		d.RetryAfter = b.retryAfter()
	}
	return d, nil
}

// RedisLimiter counts requests per key in fixed windows shared by every
// replica.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) windowKey(key string, now time.Time) (string, time.Duration) {
	slot := now.UnixNano() / int64(l.window)
	end := time.Unix(0, (slot+1)*int64(l.window))
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, slot), end.Sub(now)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k, ttl := l.windowKey(key, l.now())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= l.limit, Limit: l.limit, Remaining: l.limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// KeyFunc picks the identity a request is limited under.
type KeyFunc func(c echo.Context) string

// ClientIP limits per remote address.
func ClientIP(c echo.Context) string { return c.RealIP() }

// RateLimit limits per client IP with an in-memory token bucket.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return RateLimitWith(NewMemoryLimiter(cfg), ClientIP, zerolog.Nop())
}

// RateLimitWith enforces limiter. A limiter error lets the request through
// and is logged, so an unavailable backend does not take booking down.
func RateLimitWith(limiter Limiter, keyFn KeyFunc, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := limiter.Allow(c.Request().Context(), keyFn(c))
			if err != nil {
				logger.Warn().Err(err).Str("path", c.Path()).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements request rate limiting. A Limiter decides whether a
// request keyed by its principal may proceed; RateLimit turns a Limiter into
// Gin middleware. Two limiters are provided:
//
//   - RateLimiter: in-process token buckets (golang.org/x/time/rate), one per
//     key, with opportunistic eviction of idle buckets.
//   - RedisRateLimiter (redis_ratelimit.go): a shared token bucket evaluated
//     atomically in Redis, for deployments with more than one replica.
//
// Keys come from KeyByPrincipal, so authenticated parents and toys get their
// own buckets and anonymous traffic is limited per client IP. Idempotent
// replays flagged by IdempotencyValidator skip limiting.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed. retryAfter is
// a hint for the Retry-After header when the request is denied.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByPrincipal keys buckets by authenticated principal when one is set on
// the context (parent first, then API key), falling back to the client IP.
//
// Prefixes keep the namespaces apart ("parent:<id>", "key:<id>", "ip:<addr>").
func KeyByPrincipal() keyFunc {
	return func(c *gin.Context) string {
		if id := c.GetString(ctxKeyUserID); id != "" {
			return "parent:" + id
		}
		if id := c.GetString(ctxKeyAPIKeyID); id != "" {
			return "key:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by key namespace.",
	},
	[]string{"scope"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process per-key token bucket limiter. Idle buckets are
// evicted after ttl during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter refilling rps tokens per second up
// to burst (values <= 0 are coerced to 1).
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Allow implements Limiter.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if rl.getVisitor(key).Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

// getVisitor returns (and updates) the limiter for key, creating it if absent.
// Every 5000 lookups it first evicts buckets idle for at least ttl, so an old
// bucket is dropped even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// RateLimit returns middleware enforcing l per key. Limiter errors fail open:
// the request proceeds and the error is logged.
//
// Rejections are answered with:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds>
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func RateLimit(l Limiter, keyFn keyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = KeyByPrincipal()
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := keyFn(c)
		ok, retry, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("rate_key", key).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if ok {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(scopeOf(key)).Inc()
		secs := int((retry + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// scopeOf returns the namespace prefix of a bucket key.
func scopeOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "other"
}

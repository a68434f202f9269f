// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with one
// bucket per caller identity. Buckets live in a mutex-guarded map and idle
// entries are swept lazily during lookups, so memory stays bounded without
// a background goroutine. The limiter is process-local; a horizontally
// scaled deployment would need a shared store to enforce a global budget.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity that owns its token bucket.
// The returned string must be stable for the lifetime of the request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated account id when the auth
// middleware has stashed one, and by client IP otherwise. Prefixes keep the
// two namespaces from colliding.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id, ok := UserIDFrom(c); ok {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter hands out token buckets on demand, one per key.
// Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket

	ttl         time.Duration
	sinceSweep  uint64
	sweepEveryN uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst capacity. A burst of zero or less is coerced to 1 so a
// misconfigured limiter still lets single requests through.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:         rate.Limit(rps),
		burst:       burst,
		keyFn:       keyFn,
		buckets:     make(map[string]*bucket),
		ttl:         10 * time.Minute,
		sweepEveryN: 5000,
	}
}

// bucketFor returns the limiter for key, creating it on first sight.
// Every sweepEveryN lookups the map is swept for entries idle at least ttl.
// The sweep runs before the requested key is touched, so a stale bucket is
// evicted even when it is the one being fetched.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sinceSweep++
	if rl.sinceSweep >= rl.sweepEveryN {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.sinceSweep = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.seen = now
		return b.lim
	}

	b := &bucket{lim: rate.NewLimiter(rl.rps, rl.burst), seen: now}
	rl.buckets[key] = b
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay of an already completed operation. Replays are served from the
// stored record and must not burn tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-key budget. Rejected requests get a 429 with the
// standard error envelope and a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.bucketFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

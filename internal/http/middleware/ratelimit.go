// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory, token-bucket rate limiter with
// per-identity buckets and opportunistic cleanup of idle buckets. It is
// process-local: horizontally scaled deployments should put a distributed
// limiter in front instead.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that prefers the acting user (the
// X-User-ID header set by the auth proxy) and falls back to the client IP.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetHeader("X-User-ID"); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the per-identity token buckets.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	lastGC   time.Time
}

// NewRateLimiter builds a limiter allowing rps tokens per second with the
// given burst, keyed by key.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: map[string]*visitor{},
		rps:      rate.Limit(rps),
		burst:    burst,
		lastGC:   time.Now(),
	}
}

// Handler returns the Gin middleware enforcing the limit. Requests over the
// limit receive 429 with the standard error envelope.
func (rl *RateLimiter) Handler(key keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": c.GetString(requestIDKey),
				"code":       "too_many_requests",
				"message":    "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	// Evict buckets idle for 10+ minutes, at most once a minute.
	if now.Sub(rl.lastGC) > time.Minute {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) > 10*time.Minute {
				delete(rl.visitors, k)
			}
		}
		rl.lastGC = now
	}

	return v.limiter.Allow()
}

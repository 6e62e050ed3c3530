// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a fixed-window rate limiter over the shared KV store.
// Each (tenant, client IP) pair gets its own counter; the first request in a
// window creates the counter with the window's TTL, and every request
// increments it. Crossing the limit yields 429 with a Retry-After hint.
//
// A fixed window admits up to 2x the limit across a window boundary (the tail
// of one window plus the head of the next). That is accepted: the limiter is
// edge-level abuse control, not precise admission control, and the window
// counter is a single atomic KV operation that works identically on the
// in-memory store and on Redis for multi-instance deployments.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/store"
)

// keyFunc selects the identity used to key a rate-limit counter.
//
// Implementations should return a stable string for the duration of a request.
// The tenant is always part of the key so one tenant's burst cannot exhaust
// another's budget.
type keyFunc func(*gin.Context) string

// KeyByTenantAndIP returns a keyFunc combining the resolved tenant with the
// client IP. Requests arriving before tenant resolution (or on unguarded
// routes) fall back to the IP alone.
func KeyByTenantAndIP() keyFunc {
	return func(c *gin.Context) string {
		if tenant, ok := TenantFrom(c); ok {
			return "rl:" + tenant + ":" + c.ClientIP()
		}
		return "rl:-:" + c.ClientIP()
	}
}

// RateLimiter enforces a fixed-window request limit per key.
//
// Safe for concurrent use; all state lives in the KV store.
type RateLimiter struct {
	kv     store.KV
	limit  int64
	window time.Duration
	keyFn  keyFunc

	// failOpen selects behavior when the KV store errors: admit the request
	// (availability over enforcement) or refuse with 503. Defaults to closed
	// because an unenforced limiter invites abuse silently.
	failOpen bool
}

// NewRateLimiter constructs a fixed-window limiter.
//
//   - limit:  requests admitted per window; values <= 0 are coerced to 1.
//   - window: counting window; values <= 0 are coerced to one minute.
func NewRateLimiter(kv store.KV, limit int, window time.Duration, keyFn keyFunc, failOpen bool) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		kv:       kv,
		limit:    int64(limit),
		window:   window,
		keyFn:    keyFn,
		failOpen: failOpen,
	}
}

// IsRateBypass reports whether IdempotencyValidator marked this request for
// rate-limit bypass (i.e., it replays a previously completed request).
// Replays are served from the idempotency record and cost nothing, so they
// must not burn window budget.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware enforcing the fixed-window limit.
//
// Responses:
//   - 429 with Retry-After (seconds until the window resets) when the
//     counter exceeds the limit.
//   - 503 with code "rate_limiter_unavailable" when the KV store fails and
//     the limiter is configured fail-closed.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		count, resetIn, err := rl.kv.IncrWindow(c.Request.Context(), key, rl.window)
		if err != nil {
			if rl.failOpen {
				LoggerFrom(c).Warn().Err(err).Msg("rate limiter store unavailable, failing open")
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "rate_limiter_unavailable",
				"message":    "rate limiter backend unavailable",
			})
			return
		}

		if count > rl.limit {
			retryAfter := int(resetIn.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id":          c.Writer.Header().Get(requestIDHeader),
				"code":                "too_many_requests",
				"message":             "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for unsafe HTTP methods. It
// validates an Idempotency-Key request header, optionally performs a
// caller-supplied lookup to detect previously completed requests, and
// annotates the request context so downstream handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed requests (IsReplay)
//   - bypass rate limiting when a replay is served (via an internal flag)
//
// The middleware validates and flags; serving the stored response (and
// detecting payload divergence) stays in the handler, which owns the
// idempotency record and its request hash.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header that clients use to convey an
// idempotency key for unsafe operations.
//
// The value is expected to be stable for a given semantic operation so that
// retries (network, client, or server initiated) deduplicate safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
//
// Handlers should prefer this function over reading the header directly.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the middleware detected that this request would
// replay a previously completed operation for (tenant, route, key).
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation behavior for
// IdempotencyValidator. TTL enforcement belongs to the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative
	// RFC7230-like token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a stored, still-valid response exists for
// (tenantID, route, key) at the given time. Implementations consult the
// idempotency table, honoring its TTL window.
//
// Return exists=true when the prior response can be replayed; return an error
// only for lookup failures (which must not block normal processing).
type IdempotencyLookup func(ctx context.Context, tenantID, route, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context, and optionally checks for a prior
// completed request via the supplied lookup. When a replay is detected it
// marks the context so downstream components can:
//   - detect replay via IsReplay
//   - skip rate limiting via the internal bypass flag
//
// Behavior:
//   - Header absent: no-op.
//   - Header fails validation: 400 with code "bad_idempotency_key".
//   - Lookup indicates a replay: replay + rate-bypass flags set.
//
// The route component of the lookup key is the matched Gin route (method and
// registered path), so the same key used against different operations never
// collides.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		// RFC-7230-ish token + common safe chars.
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		// Stash the normalized key for downstream use.
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			tenantID, _ := TenantFrom(c)
			route := RouteKey(c)
			now := time.Now().UTC()

			if exists, _ := lookup(c.Request.Context(), tenantID, route, key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// RequireIdempotencyKey refuses requests that carry no Idempotency-Key. It is
// meant for mutations whose retries must be deduplicated (booking creates and
// reschedules), mounted per-route after IdempotencyValidator so the key has
// already been validated and stashed when it runs.
func RequireIdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "Idempotency-Key header is required",
			})
			return
		}
		c.Next()
	}
}

// RouteKey returns the canonical route identity used to scope idempotency
// records: "METHOD /registered/path". Unmatched routes fall back to the raw
// URL path, which only happens for 404s that never reach a handler anyway.
func RouteKey(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

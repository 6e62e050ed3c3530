// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements tenant resolution. Every request entering the API must
// carry an X-Tenant-ID header; requests without one are rejected before any
// handler runs. When the request also carries a Bearer token, the token's
// tenant_id claim must agree with the header, so a leaked token from one
// tenant cannot be replayed against another.
//
// Tenancy is resolved exactly once per request and stashed in the Gin
// context; everything downstream (handlers, services, repositories) receives
// the tenant as an argument and never re-reads the header.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// HeaderTenantID is the request header that carries the caller's tenant.
const HeaderTenantID = "X-Tenant-ID"

// Context keys for resolved identity.
const (
	ctxKeyTenantID = "tenantID"
	ctxKeyActorID  = "actorID"
)

// TenantFrom returns the tenant resolved by TenantResolver. The second value
// is false when resolution has not run (e.g., on unguarded routes).
func TenantFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyTenantID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// ActorFrom returns the acting identity (the token's subject) or "anonymous"
// when the request carried no token. Audit entries record this value.
func ActorFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyActorID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}

// tenantClaims is the JWT claim set the resolver understands.
type tenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// TenantResolver returns a middleware that resolves and validates the
// request's tenant.
//
// Behavior:
//   - Missing or blank X-Tenant-ID: 400 with code "missing_tenant".
//   - Bearer token present and jwtSecret configured: the token must parse,
//     verify, and carry a tenant_id claim equal to the header, otherwise 401
//     with code "tenant_mismatch". The token subject becomes the actor ID.
//   - No token (or no secret configured): the header alone identifies the
//     tenant and the actor is "anonymous".
func TenantResolver(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "missing_tenant",
				"message":    "X-Tenant-ID header is required",
			})
			return
		}

		auth := c.GetHeader("Authorization")
		if jwtSecret != "" && strings.HasPrefix(auth, "Bearer ") {
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			claims := &tenantClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid || claims.TenantID != tenantID {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "tenant_mismatch",
					"message":    "token does not match the requested tenant",
				})
				return
			}
			c.Set(ctxKeyActorID, claims.Subject)
		}

		c.Set(ctxKeyTenantID, tenantID)
		c.Next()
	}
}

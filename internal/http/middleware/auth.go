// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the request principal. RequireParent accepts a bearer
// access token, RequireAPIKey accepts a machine API key plus the toy it speaks
// for, and RequireAdmin narrows a resolved parent to the admin role. Failures
// are reported through the ErrorWriter supplied by the HTTP layer so that all
// error bodies share one envelope.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// Headers used by toys.
const (
	HeaderAPIKey  = "X-API-Key"
	HeaderToyUUID = "X-Toy-UUID"
)

// Context keys holding the resolved principal.
const (
	ctxKeyParent   = "parent"
	ctxKeyUserID   = "userID"
	ctxKeyAPIKeyID = "apiKeyID"
	ctxKeyToyUUID  = "toyUUID"
)

// ParentResolver maps an access token to its parent account.
type ParentResolver interface {
	ResolveParent(ctx context.Context, accessToken string) (*domain.Parent, error)
}

// APIKeyResolver maps a raw API key to its record.
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, rawKey string) (*domain.APIKey, error)
}

// ErrorWriter aborts the request with the response for err.
type ErrorWriter func(c *gin.Context, err error)

// RequireParent authenticates "Authorization: Bearer <token>" and stores the
// parent on the context (see ParentFrom).
func RequireParent(res ParentResolver, fail ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := res.ResolveParent(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			RecordAuthRejection("bearer")
			fail(c, err)
			return
		}
		c.Set(ctxKeyParent, p)
		c.Set(ctxKeyUserID, p.ID)
		enrichLogger(c, func(l zerolog.Context) zerolog.Context { return l.Str("parent_id", p.ID) })
		c.Next()
	}
}

// RequireAdmin must follow RequireParent. forbidden is passed to fail when the
// parent is not an admin.
func RequireAdmin(forbidden error, fail ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := ParentFrom(c); p == nil || !p.IsAdmin() {
			RecordAuthRejection("admin")
			fail(c, forbidden)
			return
		}
		c.Next()
	}
}

// RequireAPIKey authenticates the X-API-Key header and records the toy uuid
// from X-Toy-UUID (see ToyUUIDFrom).
func RequireAPIKey(res APIKeyResolver, fail ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		k, err := res.ResolveAPIKey(c.Request.Context(), c.GetHeader(HeaderAPIKey))
		if err != nil {
			RecordAuthRejection("api_key")
			fail(c, err)
			return
		}
		toy := strings.TrimSpace(c.GetHeader(HeaderToyUUID))
		c.Set(ctxKeyAPIKeyID, k.ID)
		c.Set(ctxKeyToyUUID, toy)
		enrichLogger(c, func(l zerolog.Context) zerolog.Context {
			return l.Str("api_key_id", k.ID).Str("toy_uuid", toy)
		})
		c.Next()
	}
}

// ParentFrom returns the authenticated parent, or nil.
func ParentFrom(c *gin.Context) *domain.Parent {
	if v, ok := c.Get(ctxKeyParent); ok {
		if p, ok := v.(*domain.Parent); ok {
			return p
		}
	}
	return nil
}

// ToyUUIDFrom returns the toy uuid presented alongside an API key.
func ToyUUIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyToyUUID)
}

func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

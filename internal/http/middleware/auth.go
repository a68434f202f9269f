// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Accounts are identified
// by an opaque token issued at registration or provider sign-in; clients send
// it either as "Authorization: Bearer <token>" or in the X-Auth-Token header.
// RequireAuth rejects requests without a valid token; OptionalAuth resolves
// the account when a token is present and proceeds anonymously otherwise.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// HeaderAuthToken is the fallback token header for clients that cannot set
// Authorization (the Telegram webview, notably).
const HeaderAuthToken = "X-Auth-Token"

// Context keys under which the resolved account is stashed.
const (
	ctxKeyUser   = "auth.user"
	ctxKeyUserID = "userID"
)

// TokenResolver maps a bearer token to its account. It is implemented by the
// user service; middleware stays decoupled from persistence.
type TokenResolver interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// BearerToken extracts the token from the Authorization header (Bearer
// scheme) or the X-Auth-Token fallback. Returns "" when neither is present.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return strings.TrimSpace(c.GetHeader(HeaderAuthToken))
}

// UserFrom returns the authenticated account stored by RequireAuth or
// OptionalAuth. The second return value indicates presence.
func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// UserIDFrom returns the authenticated account id, when present.
func UserIDFrom(c *gin.Context) (uint, bool) {
	u, ok := UserFrom(c)
	if !ok {
		return 0, false
	}
	return u.ID, true
}

// RequireAuth resolves the bearer token and aborts with 401 when it is
// missing or unknown. When an upstream OptionalAuth already resolved the
// account it is reused instead of hitting storage again.
func RequireAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserFrom(c); ok {
			c.Next()
			return
		}
		token := BearerToken(c)
		if token == "" {
			abortUnauthorized(c, "missing auth token")
			return
		}
		u, err := resolver.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "invalid auth token")
			return
		}
		c.Set(ctxKeyUser, u)
		c.Set(ctxKeyUserID, u.ID)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when one is supplied. An invalid
// token is still rejected; anonymous requests proceed without identity.
func OptionalAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		u, err := resolver.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "invalid auth token")
			return
		}
		c.Set(ctxKeyUser, u)
		c.Set(ctxKeyUserID, u.ID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

const callerKey = "caller"

// Resolver maps verified access-token claims to a live caller.
type Resolver func(ctx context.Context, claims Claims) (access.Caller, error)

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}

// Authenticate enforces bearer access tokens and stores the resolved caller.
func Authenticate(tokens *Tokens, resolve Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(tokenStr, AccessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.MessageOf(err)})
			return
		}
		caller, err := resolve(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(resolveStatus(err), gin.H{"error": apperr.MessageOf(err)})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func resolveStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Internal:
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// RequireRole rejects callers outside roles with 403.
func RequireRole(roles ...access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Require(CallerFrom(c), roles...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": apperr.MessageOf(err)})
			return
		}
		c.Next()
	}
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c *gin.Context) access.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(access.Caller); ok {
			return caller
		}
	}
	return access.Caller{}
}

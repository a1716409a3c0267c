// auth.go authenticates management requests. Sessions are Bearer JWTs; the
// token only names a user id, and that id stays untrusted until it matches a
// stored user on this request. Permissions are never read from the token.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/auth"
	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/telemetry"
)

const (
	// UserIDKey is the gin.Context key for the authenticated user id
	UserIDKey = "user_id"
	// UserKey is the gin.Context key for the loaded user record
	UserKey = "current_user"
)

// UserLoader resolves a user id to its stored record
type UserLoader interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// Authenticate verifies the Bearer token and loads the caller's user record
// into the context. Missing or invalid credentials, and tokens naming a user
// that no longer exists, are all 401: the caller is unauthenticated either
// way.
func Authenticate(tokens *auth.TokenService, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			deny(c, "missing_credential")
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			deny(c, "malformed_header")
			return
		}

		userID, err := tokens.Verify(tokenString)
		if err != nil {
			deny(c, "invalid_token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
			return
		}
		if user == nil {
			deny(c, "unknown_user")
			return
		}

		c.Set(UserIDKey, user.UserID)
		c.Set(UserKey, user)
		c.Next()
	}
}

func deny(c *gin.Context, reason string) {
	op := c.FullPath()
	if op == "" {
		op = "<no-route>"
	}
	telemetry.AuthDenialsTotal.WithLabelValues(op, reason).Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "Unauthorized",
	})
}

// CurrentUser returns the authenticated user loaded by Authenticate
func CurrentUser(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok && user != nil
}

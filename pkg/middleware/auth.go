package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/pkg/response"
)

const (
	// ContextKeyUserID is the gin context key holding the authenticated user
	ContextKeyUserID = "user_id"

	bearerPrefix = "Bearer "
)

// TokenAuthenticator resolves a raw token to a user id
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthConfig maps authenticator errors to response codes
type AuthConfig struct {
	Authenticator TokenAuthenticator
	// ErrUnauthenticated is returned by the authenticator for a missing token
	ErrUnauthenticated error
}

// Auth rejects requests without a valid bearer token with 401 and stores the
// user id under ContextKeyUserID. A missing token is UNAUTHENTICATED, a token
// that fails validation is BAD_TOKEN.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(header, bearerPrefix) {
			token = strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		}
		if token == "" {
			response.Unauthorized(c, "UNAUTHENTICATED", "Authentication is required")
			c.Abort()
			return
		}

		userID, err := cfg.Authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if cfg.ErrUnauthenticated != nil && errors.Is(err, cfg.ErrUnauthenticated) {
				response.Unauthorized(c, "UNAUTHENTICATED", "Authentication is required")
			} else {
				response.Unauthorized(c, "BAD_TOKEN", "Invalid or expired token")
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, if any
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextKeyUserID)
	return userID, userID != ""
}

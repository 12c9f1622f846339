package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/pkg/response"
)

const (
	// ContextEmail is the key for the authenticated email in gin context.
	ContextEmail = "user_email"
	// SessionCookie is the name of the session cookie.
	SessionCookie = "session"
)

// SessionResolver resolves a session token to the email it is bound to.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Session returns a middleware that authenticates the session cookie and
// sets the bound email in the gin context.
func Session(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			response.Unauthorized(c, "Not authenticated")
			c.Abort()
			return
		}
		email, err := sessions.Resolve(c.Request.Context(), token)
		if errors.Is(err, domain.ErrUnauthenticated) {
			response.Unauthorized(c, "Invalid session")
			c.Abort()
			return
		}
		if err != nil {
			// a store outage is not the caller's fault
			response.Internal(c)
			c.Abort()
			return
		}
		c.Set(ContextEmail, email)
		c.Next()
	}
}

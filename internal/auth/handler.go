// Package auth implements passwordless identity: emailed one-time codes and
// opaque cookie sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/middleware"
	"github.com/votify/backend/internal/models"
	"github.com/votify/backend/pkg/queue"
	"github.com/votify/backend/pkg/response"
)

// UserStore is the identity persistence the handler needs.
type UserStore interface {
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, displayName string) error
}

// CodeIssuer issues and verifies one-time codes.
type CodeIssuer interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
}

// SessionIssuer creates session tokens.
type SessionIssuer interface {
	Issue(ctx context.Context, email string) (string, error)
}

// Enqueuer dispatches notification jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles registration, login and session endpoints.
type Handler struct {
	users      UserStore
	codes      CodeIssuer
	sessions   SessionIssuer
	queue      Enqueuer
	sessionTTL time.Duration
	secure     bool
	logger     *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, codes CodeIssuer, sessions SessionIssuer, q Enqueuer, sessionTTL time.Duration, secureCookies bool, logger *zap.Logger) *Handler {
	return &Handler{
		users:      users,
		codes:      codes,
		sessions:   sessions,
		queue:      q,
		sessionTTL: sessionTTL,
		secure:     secureCookies,
		logger:     logger,
	}
}

// Register handles GET /api/register?email=. Creates the user and sends a
// verification code.
func (h *Handler) Register(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}

	exists, err := h.users.Exists(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		response.Internal(c)
		return
	}
	if exists {
		response.BadRequest(c, "User already exists")
		return
	}

	if err := h.users.Create(c.Request.Context(), email, ""); err != nil {
		h.logger.Error("user create failed", zap.String("email", email), zap.Error(err))
		response.Internal(c)
		return
	}

	h.sendCode(c, email)
	response.OK(c, gin.H{"message": "Verification code sent"})
}

// Login handles GET /api/login?email=. Sends a verification code to a
// registered email.
func (h *Handler) Login(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}

	exists, err := h.users.Exists(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		response.Internal(c)
		return
	}
	if !exists {
		response.BadRequest(c, "User does not exist")
		return
	}

	h.sendCode(c, email)
	response.OK(c, gin.H{"message": "Verification code sent"})
}

// VerifyCode handles GET /api/login/code?email=&code=. On success it issues a
// session and sets the HTTP-only session cookie.
func (h *Handler) VerifyCode(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.BadRequest(c, "Code query parameter is required")
		return
	}

	if err := h.codes.Verify(c.Request.Context(), email, code); err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeExpired):
			response.BadRequest(c, "Code expired")
		case errors.Is(err, domain.ErrCodeInvalid):
			response.BadRequest(c, "Invalid code")
		default:
			h.logger.Error("code verification failed", zap.String("email", email), zap.Error(err))
			response.Internal(c)
		}
		return
	}

	token, err := h.sessions.Issue(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("session issue failed", zap.String("email", email), zap.Error(err))
		response.Internal(c)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.secure, true)
	response.OK(c, gin.H{"message": "Code is valid"})
}

// Check handles GET /api/auth/check behind the session middleware.
func (h *Handler) Check(c *gin.Context) {
	email := c.MustGet(middleware.ContextEmail).(string)
	response.OK(c, gin.H{"authenticated": true, "email": email})
}

// sendCode issues a code and enqueues its delivery. Dispatch problems are
// logged, never surfaced: the endpoint's answer is about the request, not
// about SMTP.
func (h *Handler) sendCode(c *gin.Context, email string) {
	code, err := h.codes.Issue(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("code issue failed", zap.String("email", email), zap.Error(err))
		return
	}
	payload := queue.EmailPayload{
		EmailType:      models.EmailTypeVerificationCode,
		RecipientEmail: email,
		Subject:        "Verification Code",
		Body:           verificationBody(code),
	}
	if err := h.queue.EnqueueEmail(c.Request.Context(), payload); err != nil {
		h.logger.Error("verification email enqueue failed", zap.String("email", email), zap.Error(err))
	}
}

func verificationBody(code string) string {
	return fmt.Sprintf(
		"Use the code below to complete your login to Votify:\n\n\t%s\n\nThis code will expire in 15 minutes.\nIf you did not request this code, please ignore this email.\n",
		code,
	)
}

func requireEmail(c *gin.Context) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if email == "" {
		response.BadRequest(c, "Email query parameter is required")
		return "", false
	}
	return email, true
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	emailKeyPrefix   = "session:email:"
)

// SessionStore holds opaque session tokens in Redis, one live session per
// email. Issuing a new session invalidates the previous token for that
// email (last write wins).
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionStore creates a session store.
func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{client: client, ttl: ttl, logger: logger}
}

// Issue creates a 64-hex-char token bound to the email and revokes any prior
// token for that email.
func (s *SessionStore) Issue(ctx context.Context, email string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	prev, err := s.client.Get(ctx, emailKeyPrefix+email).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("load prior session: %w", err)
	}

	pipe := s.client.TxPipeline()
	if prev != "" {
		pipe.Del(ctx, sessionKeyPrefix+prev)
	}
	pipe.Set(ctx, sessionKeyPrefix+token, email, s.ttl)
	pipe.Set(ctx, emailKeyPrefix+email, token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("session issued", zap.String("email", email))
	return token, nil
}

// Resolve returns the email bound to the token, or ErrUnauthenticated when
// the token is unknown or expired.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	email, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return email, nil
}

// generateToken returns 32 random bytes hex-encoded (64 chars).
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
)

const codeKeyPrefix = "verify:"

// CodeStore holds one live verification code per email in Redis. TTL expiry
// doubles as the 15-minute code lifetime; the attempt budget is decremented
// with HIncrBy so concurrent guesses cannot stretch it.
type CodeStore struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	logger   *zap.Logger
}

// NewCodeStore creates a verification-code store.
func NewCodeStore(client *redis.Client, ttl time.Duration, attempts int, logger *zap.Logger) *CodeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeStore{client: client, ttl: ttl, attempts: attempts, logger: logger}
}

// Issue generates a fresh 6-digit code for the email and stores it with the
// configured TTL and attempt budget. Any live code for the email is
// superseded: exactly one code per email can validate at a time.
func (s *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	key := codeKeyPrefix + email

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "code", code, "attempts", s.attempts)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	s.logger.Info("verification code issued", zap.String("email", email))
	return code, nil
}

// Verify checks the submitted code. A missing record (never issued, expired,
// or already consumed) fails with ErrCodeExpired. A mismatch or an exhausted
// attempt budget fails with ErrCodeInvalid; each mismatch burns one attempt.
// A match consumes the record, so a code validates at most once.
func (s *CodeStore) Verify(ctx context.Context, email, code string) error {
	key := codeKeyPrefix + email

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if len(fields) == 0 {
		return domain.ErrCodeExpired
	}
	if fields["code"] == "" {
		// partial record left by a decrement that raced TTL expiry
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("stale code cleanup failed", zap.String("email", email), zap.Error(err))
		}
		return domain.ErrCodeExpired
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	if attempts <= 0 {
		return domain.ErrCodeInvalid
	}
	if fields["code"] != code {
		left, err := s.client.HIncrBy(ctx, key, "attempts", -1).Result()
		if err != nil {
			s.logger.Warn("attempt decrement failed", zap.String("email", email), zap.Error(err))
			return domain.ErrCodeInvalid
		}
		// attempts was >= 1 above, so a negative result means the record
		// expired between the read and the decrement and HIncrBy re-created
		// it without a TTL
		if left < 0 {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				s.logger.Warn("stale code cleanup failed", zap.String("email", email), zap.Error(err))
			}
			return domain.ErrCodeExpired
		}
		return domain.ErrCodeInvalid
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// generateCode returns a uniform random 6-digit code (100000-999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(100000+n.Int64(), 10), nil
}

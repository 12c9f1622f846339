package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/votify/backend/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCodeStoreIssueAndVerify(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, store.Verify(ctx, "alice@example.com", code))

	// a code validates at most once
	err = store.Verify(ctx, "alice@example.com", code)
	require.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestCodeStoreAttemptBudget(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = store.Verify(ctx, "alice@example.com", "000000")
		require.ErrorIs(t, err, domain.ErrCodeInvalid)
	}

	// budget exhausted, even the right code no longer validates
	err = store.Verify(ctx, "alice@example.com", code)
	require.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestCodeStoreExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	mr.FastForward(16 * time.Minute)

	err = store.Verify(ctx, "alice@example.com", code)
	require.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestCodeStoreReissueSupersedes(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)
	ctx := context.Background()

	first, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	if first != second {
		err = store.Verify(ctx, "alice@example.com", first)
		require.ErrorIs(t, err, domain.ErrCodeInvalid)
	}
	require.NoError(t, store.Verify(ctx, "alice@example.com", second))
}

func TestCodeStoreNeverIssued(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)

	err := store.Verify(context.Background(), "nobody@example.com", "123456")
	require.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestCodeStoreStaleAttemptRecord(t *testing.T) {
	// a decrement racing TTL expiry re-creates the hash with only the
	// attempts field and no TTL; verification must treat that as an expired
	// code and remove the leftover
	mr, client := newTestRedis(t)
	store := NewCodeStore(client, 15*time.Minute, 3, nil)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "verify:alice@example.com", "attempts", -1).Err())

	err := store.Verify(ctx, "alice@example.com", "123456")
	require.ErrorIs(t, err, domain.ErrCodeExpired)
	require.False(t, mr.Exists("verify:alice@example.com"))

	// a fresh issue works normally afterwards
	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, store.Verify(ctx, "alice@example.com", code))
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		require.GreaterOrEqual(t, code, "100000")
		require.LessOrEqual(t, code, "999999")
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/votify/backend/internal/domain"
)

func TestSessionStoreIssueAndResolve(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, 24*time.Hour, nil)
	ctx := context.Background()

	token, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, token, 64)

	email, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)
}

func TestSessionStoreNewLoginInvalidatesOld(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, 24*time.Hour, nil)
	ctx := context.Background()

	first, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = store.Resolve(ctx, first)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	email, err := store.Resolve(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)
}

func TestSessionStoreExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour, nil)
	ctx := context.Background()

	token, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSessionStoreUnknownToken(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour, nil)

	_, err := store.Resolve(context.Background(), "deadbeef")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = store.Resolve(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

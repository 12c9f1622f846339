package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, *redis.Client, *Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client, NewQueue(client, nil)
}

func TestEnqueueDequeueRoundtrip(t *testing.T) {
	_, _, q := newTestQueue(t)
	ctx := context.Background()

	payload := EmailPayload{
		EmailType:      "verification_code",
		RecipientEmail: "alice@example.com",
		Subject:        "Verification Code",
		Body:           "123456",
	}
	require.NoError(t, q.EnqueueEmail(ctx, payload))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, JobTypeEmail, job.Type)
	require.NotEmpty(t, job.ID)
	require.Zero(t, job.Attempt)

	var got EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	require.Equal(t, payload, got)
}

func TestDequeueOrder(t *testing.T) {
	_, _, q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{RecipientEmail: "first@example.com"}))
	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{RecipientEmail: "second@example.com"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	var p EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	require.Equal(t, "first@example.com", p.RecipientEmail)
}

func TestRetryRequeues(t *testing.T) {
	_, client, q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{RecipientEmail: "alice@example.com"}))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job))
	require.Equal(t, int64(1), client.LLen(ctx, QueueEmails).Val())
	require.Equal(t, int64(0), client.LLen(ctx, QueueDLQ).Val())

	retried, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, retried.Attempt)
	require.Equal(t, job.ID, retried.ID)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	_, client, q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{RecipientEmail: "alice@example.com"}))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	for job.Attempt < MaxRetries-1 {
		require.NoError(t, q.Retry(ctx, job))
		job, err = q.Dequeue(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, q.Retry(ctx, job))
	require.Equal(t, int64(0), client.LLen(ctx, QueueEmails).Val())
	require.Equal(t, int64(1), client.LLen(ctx, QueueDLQ).Val())
}

func TestDequeueSkipsGarbage(t *testing.T) {
	_, client, q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, client.RPush(ctx, QueueEmails, "not json").Err())

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, job)
}

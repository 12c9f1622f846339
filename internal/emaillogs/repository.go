package emaillogs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votify/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a dispatch attempt in pending state and returns its id.
func (r *Repository) Insert(ctx context.Context, emailType, recipient, subject string) (uuid.UUID, error) {
	const q = `INSERT INTO email_logs (id, email_type, recipient_email, subject, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, emailType, recipient, subject, models.EmailLogStatusPending).Scan(&id)
	return id, err
}

// MarkSent flips a pending log to sent and stamps the delivery time.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE email_logs SET status = $2, sent_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusSent)
	return err
}

// MarkFailed flips a pending log to failed with the delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusFailed, reason)
	return err
}


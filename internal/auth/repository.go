package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether a user with the email is registered.
func (r *Repository) Exists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a new user. Registering an existing email is a no-op so the
// join-by-link flow can auto-register without racing the code flow.
func (r *Repository) Create(ctx context.Context, email, displayName string) error {
	const q = `INSERT INTO users (email, display_name) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, email, displayName)
	return err
}

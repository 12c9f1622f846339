package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/models"
)

// Info is the member-facing group view.
type Info struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Members     int    `json:"members"`
}

// PublicInfo is the pre-join group view, without the member count.
type PublicInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Repository handles group and membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a groups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create allocates the next group id (max+1, human-shareable as a join code)
// and inserts the group with the owner as its first admin member, all in one
// transaction. An advisory lock serializes concurrent id allocation.
func (r *Repository) Create(ctx context.Context, ownerEmail, name, description string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.ErrInvalidName
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('groups_id'))`); err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO groups (id, name, description)
		 SELECT COALESCE(MAX(id), 0) + 1, $1, $2 FROM groups
		 RETURNING id`,
		name, description,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO memberships (user_email, group_id, role) VALUES ($1, $2, $3)`,
		ownerEmail, id, models.RoleAdmin,
	)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// Join adds the email to the group as a member. Unknown users are
// auto-registered with an empty display name (join-by-link flow). Joining a
// group twice fails with ErrAlreadyMember.
func (r *Repository) Join(ctx context.Context, email string, groupID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrGroupNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (email, display_name) VALUES ($1, '') ON CONFLICT (email) DO NOTHING`,
		email,
	); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO memberships (user_email, group_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (user_email, group_id) DO NOTHING`,
		email, groupID, models.RoleMember,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyMember
	}

	return tx.Commit(ctx)
}

// IsMember reports whether the email has a membership in the group.
func (r *Repository) IsMember(ctx context.Context, email string, groupID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM memberships WHERE user_email = $1 AND group_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, email, groupID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListForUser returns the groups the email belongs to. An unregistered email
// fails with ErrUserNotFound so the API can distinguish "no groups" from
// "no such user".
func (r *Repository) ListForUser(ctx context.Context, email string) ([]models.Group, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	const q = `SELECT g.id, g.name, g.description, g.created_at
		FROM groups g
		INNER JOIN memberships m ON m.group_id = g.id
		WHERE m.user_email = $1
		ORDER BY g.id`
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Info returns the group with its member count, or ErrGroupNotFound.
func (r *Repository) Info(ctx context.Context, id int64) (*Info, error) {
	const q = `SELECT g.id, g.name, g.description,
		(SELECT COUNT(*) FROM memberships m WHERE m.group_id = g.id)
		FROM groups g WHERE g.id = $1`
	var info Info
	err := r.pool.QueryRow(ctx, q, id).Scan(&info.ID, &info.Name, &info.Description, &info.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// PublicInfo returns the pre-join view of a group, or ErrGroupNotFound.
func (r *Repository) PublicInfo(ctx context.Context, id int64) (*PublicInfo, error) {
	const q = `SELECT id, name, description FROM groups WHERE id = $1`
	var info PublicInfo
	err := r.pool.QueryRow(ctx, q, id).Scan(&info.ID, &info.Name, &info.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

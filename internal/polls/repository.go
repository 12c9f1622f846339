package polls

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/models"
)

// Repository handles poll persistence. All per-poll mutations run in a
// transaction holding a row lock on the poll, so the vote counters and the
// voted-by set can never drift apart.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create allocates the next poll id (max+1, global across groups) and inserts
// the poll with zero counters. The actor must be a member of the group.
func (r *Repository) Create(ctx context.Context, actorEmail string, groupID int64, title string, end time.Time) (int64, error) {
	if err := ValidateNew(title, end, time.Now()); err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	member, err := isMemberTx(ctx, tx, actorEmail, groupID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, domain.ErrNotMember
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('polls_id'))`); err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO polls (id, group_id, title, end_at, total_votes)
		 SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, 0 FROM polls
		 RETURNING id`,
		groupID, strings.TrimSpace(title), end,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// CastVote records one vote. The poll row is locked for the duration so the
// admissibility checks and the counter updates are a single atomic step.
func (r *Repository) CastVote(ctx context.Context, voterEmail string, pollID int64, optionName string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	p, err := lockPoll(ctx, tx, pollID)
	if err != nil {
		return err
	}
	member, err := isMemberTx(ctx, tx, voterEmail, p.GroupID)
	if err != nil {
		return err
	}
	if err := CheckVote(p, voterEmail, optionName, member, time.Now()); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO votes (poll_id, user_email, option_name) VALUES ($1, $2, $3)`,
		pollID, voterEmail, optionName,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE options SET vote_count = vote_count + 1 WHERE poll_id = $1 AND name = $2`,
		pollID, optionName,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE polls SET total_votes = total_votes + 1 WHERE id = $1`,
		pollID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddOption appends a choice to an open poll. Adding an option that already
// exists is a silent no-op.
func (r *Repository) AddOption(ctx context.Context, actorEmail string, pollID int64, name, description string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	p, err := lockPoll(ctx, tx, pollID)
	if err != nil {
		return err
	}
	member, err := isMemberTx(ctx, tx, actorEmail, p.GroupID)
	if err != nil {
		return err
	}
	skip, err := CheckAddOption(p, actorEmail, name, member, time.Now())
	if err != nil {
		return err
	}
	if skip {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO options (poll_id, name, description, vote_count) VALUES ($1, $2, $3, 0)`,
		pollID, strings.TrimSpace(name), description,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a poll with its options and voted-by set. The actor must be a
// member of the owning group.
func (r *Repository) Get(ctx context.Context, actorEmail string, pollID int64) (*models.Poll, error) {
	p, err := r.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	member, err := r.isMember(ctx, actorEmail, p.GroupID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrNotMember
	}
	return p, nil
}

// ListForGroup returns all polls of a group, newest id first. Members only.
func (r *Repository) ListForGroup(ctx context.Context, actorEmail string, groupID int64) ([]models.Poll, error) {
	member, err := r.isMember(ctx, actorEmail, groupID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrNotMember
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, group_id, title, end_at, total_votes FROM polls WHERE group_id = $1 ORDER BY id DESC`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	polls, err := scanPolls(rows)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, polls)
}

// ListForUser returns every poll in every group the email belongs to, each
// paired with its group name.
func (r *Repository) ListForUser(ctx context.Context, email string) ([]models.PollWithGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.group_id, p.title, p.end_at, p.total_votes, g.name
		 FROM polls p
		 INNER JOIN groups g ON g.id = p.group_id
		 INNER JOIN memberships m ON m.group_id = p.group_id
		 WHERE m.user_email = $1
		 ORDER BY p.id DESC`,
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PollWithGroup
	var polls []models.Poll
	for rows.Next() {
		var p models.Poll
		var groupName string
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Title, &p.End, &p.Votes, &groupName); err != nil {
			return nil, err
		}
		polls = append(polls, p)
		out = append(out, models.PollWithGroup{GroupName: groupName})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	polls, err = r.hydrate(ctx, polls)
	if err != nil {
		return nil, err
	}
	for i := range polls {
		out[i].Poll = polls[i]
	}
	if out == nil {
		out = []models.PollWithGroup{}
	}
	return out, nil
}

// ListExpiredIDs returns the ids of polls whose end date has passed.
func (r *Repository) ListExpiredIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM polls WHERE end_at <= now() ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reap removes an expired poll and returns its final snapshot with the group
// name and admin emails for the result notification. The poll row is locked
// so a reap cannot interleave with a late vote. Returns (nil, nil) when the
// poll is gone or no longer expired, making concurrent sweeps idempotent.
func (r *Repository) Reap(ctx context.Context, pollID int64) (*models.ExpiredPoll, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPoll(ctx, tx, pollID)
	if errors.Is(err, domain.ErrPollNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().Before(p.End) {
		return nil, nil
	}

	snapshot := models.ExpiredPoll{Poll: *p}
	err = tx.QueryRow(ctx, `SELECT name FROM groups WHERE id = $1`, p.GroupID).Scan(&snapshot.GroupName)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT user_email FROM memberships WHERE group_id = $1 AND role = $2 ORDER BY user_email`,
		p.GroupID, models.RoleAdmin,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.AdminEmails = append(snapshot.AdminEmails, email)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM polls WHERE id = $1`, pollID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// isMember reports group membership outside a transaction.
func (r *Repository) isMember(ctx context.Context, email string, groupID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM memberships WHERE user_email = $1 AND group_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, email, groupID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func isMemberTx(ctx context.Context, tx pgx.Tx, email string, groupID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM memberships WHERE user_email = $1 AND group_id = $2)`
	var ok bool
	if err := tx.QueryRow(ctx, q, email, groupID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// lockPoll loads the full poll inside tx with its row locked FOR UPDATE.
func lockPoll(ctx context.Context, tx pgx.Tx, pollID int64) (*models.Poll, error) {
	var p models.Poll
	err := tx.QueryRow(ctx,
		`SELECT id, group_id, title, end_at, total_votes FROM polls WHERE id = $1 FOR UPDATE`,
		pollID,
	).Scan(&p.ID, &p.GroupID, &p.Title, &p.End, &p.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := fillOptions(ctx, tx, &p); err != nil {
		return nil, err
	}
	if err := fillVotedBy(ctx, tx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// loadPoll loads the full poll without locking.
func (r *Repository) loadPoll(ctx context.Context, pollID int64) (*models.Poll, error) {
	var p models.Poll
	err := r.pool.QueryRow(ctx,
		`SELECT id, group_id, title, end_at, total_votes FROM polls WHERE id = $1`,
		pollID,
	).Scan(&p.ID, &p.GroupID, &p.Title, &p.End, &p.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := fillOptions(ctx, r.pool, &p); err != nil {
		return nil, err
	}
	if err := fillVotedBy(ctx, r.pool, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// hydrate fills options and voted-by sets for a batch of polls.
func (r *Repository) hydrate(ctx context.Context, polls []models.Poll) ([]models.Poll, error) {
	if polls == nil {
		return []models.Poll{}, nil
	}
	for i := range polls {
		if err := fillOptions(ctx, r.pool, &polls[i]); err != nil {
			return nil, err
		}
		if err := fillVotedBy(ctx, r.pool, &polls[i]); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

// querier is the subset of pgxpool.Pool and pgx.Tx the load helpers need.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fillOptions(ctx context.Context, q querier, p *models.Poll) error {
	rows, err := q.Query(ctx,
		`SELECT name, description, vote_count FROM options WHERE poll_id = $1 ORDER BY name`,
		p.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Options = []models.Option{}
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.Name, &o.Description, &o.Votes); err != nil {
			return err
		}
		p.Options = append(p.Options, o)
	}
	return rows.Err()
}

func fillVotedBy(ctx context.Context, q querier, p *models.Poll) error {
	rows, err := q.Query(ctx,
		`SELECT user_email FROM votes WHERE poll_id = $1 ORDER BY user_email`,
		p.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.VotedBy = []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return err
		}
		p.VotedBy = append(p.VotedBy, email)
	}
	return rows.Err()
}

func scanPolls(rows pgx.Rows) ([]models.Poll, error) {
	defer rows.Close()
	polls := []models.Poll{}
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Title, &p.End, &p.Votes); err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

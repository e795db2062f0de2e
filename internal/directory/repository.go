package directory

import (
	"context"
	"errors"

	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("directory: not found")

// Repository is the read-only category/nominee directory consumed by the
// eligibility guard and the leaderboard views.
type Repository interface {
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetNominee(ctx context.Context, id string) (*model.Nominee, error)
	ListApprovedNominees(ctx context.Context, categoryID string) ([]model.Nominee, error)
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := r.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), vote_price, currency,
		       max_votes_per_user, voting_start, voting_end, active,
		       created_at, updated_at
		FROM categories
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.VotePrice, &c.Currency,
		&c.MaxVotesPerUser, &c.VotingStart, &c.VotingEnd, &c.Active,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetNominee(ctx context.Context, id string) (*model.Nominee, error) {
	var n model.Nominee
	err := r.db.QueryRow(ctx, `
		SELECT id, category_id, full_name, COALESCE(bio, ''), approval_status,
		       created_at, updated_at
		FROM nominees
		WHERE id = $1
	`, id).Scan(
		&n.ID, &n.CategoryID, &n.FullName, &n.Bio, &n.ApprovalStatus,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) ListApprovedNominees(ctx context.Context, categoryID string) ([]model.Nominee, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, category_id, full_name, COALESCE(bio, ''), approval_status,
		       created_at, updated_at
		FROM nominees
		WHERE category_id = $1 AND approval_status = 'approved'
		ORDER BY full_name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nominees []model.Nominee
	for rows.Next() {
		var n model.Nominee
		if err := rows.Scan(&n.ID, &n.CategoryID, &n.FullName, &n.Bio, &n.ApprovalStatus, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		nominees = append(nominees, n)
	}
	return nominees, rows.Err()
}

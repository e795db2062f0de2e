package guard

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository exposes the ledger reads the eligibility checks need. All
// methods are read-only.
type Repository interface {
	CountConfirmedVotes(ctx context.Context, userID, categoryID string) (int, error)
	CountConfirmedVotesSince(ctx context.Context, userID string, since time.Time) (int, error)
	LastVoteAt(ctx context.Context, userID string) (*time.Time, error)
	HasPendingPayment(ctx context.Context, userID, nomineeID string, since time.Time) (bool, error)
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CountConfirmedVotes(ctx context.Context, userID, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE user_id = $1 AND category_id = $2 AND status = 'confirmed'
	`, userID, categoryID).Scan(&count)
	return count, err
}

func (r *Repo) CountConfirmedVotesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE user_id = $1 AND status = 'confirmed' AND created_at >= $2
	`, userID, since).Scan(&count)
	return count, err
}

func (r *Repo) LastVoteAt(ctx context.Context, userID string) (*time.Time, error) {
	var last time.Time
	err := r.db.QueryRow(ctx, `
		SELECT created_at FROM votes
		WHERE user_id = $1 AND status = 'confirmed'
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

func (r *Repo) HasPendingPayment(ctx context.Context, userID, nomineeID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE user_id = $1 AND nominee_id = $2
			  AND status = 'pending' AND created_at >= $3
		)
	`, userID, nomineeID, since).Scan(&exists)
	return exists, err
}

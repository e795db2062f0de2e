package stats

import (
	"context"
	"errors"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteFact is the slice of a vote the aggregator needs.
type VoteFact struct {
	UserID    string
	Amount    int64
	CreatedAt time.Time
}

type Repository interface {
	FetchConfirmedVotes(ctx context.Context, nomineeID string) ([]VoteFact, error)
	Upsert(ctx context.Context, s *model.NomineeStats) error
	Get(ctx context.Context, nomineeID string) (*model.NomineeStats, error)
	CategoryLeaderboard(ctx context.Context, categoryID string) ([]LeaderboardRow, error)
}

// LeaderboardRow is a read-time view grouped from votes; never persisted.
type LeaderboardRow struct {
	NomineeID    string     `json:"nominee_id"`
	NomineeName  string     `json:"nominee_name"`
	TotalVotes   int64      `json:"total_votes"`
	TotalRevenue int64      `json:"total_revenue"`
	UniqueVoters int64      `json:"unique_voters"`
	LastVoteAt   *time.Time `json:"last_vote_at,omitempty"`
	Rank         int        `json:"rank"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) FetchConfirmedVotes(ctx context.Context, nomineeID string) ([]VoteFact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, amount, created_at
		FROM votes
		WHERE nominee_id = $1 AND status = 'confirmed'
	`, nomineeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []VoteFact
	for rows.Next() {
		var f VoteFact
		if err := rows.Scan(&f.UserID, &f.Amount, &f.CreatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r *Repo) Upsert(ctx context.Context, s *model.NomineeStats) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO nominee_stats (
			nominee_id, total_votes, total_revenue, unique_voters,
			average_vote_value, last_vote_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (nominee_id) DO UPDATE SET
			total_votes = EXCLUDED.total_votes,
			total_revenue = EXCLUDED.total_revenue,
			unique_voters = EXCLUDED.unique_voters,
			average_vote_value = EXCLUDED.average_vote_value,
			last_vote_at = EXCLUDED.last_vote_at,
			updated_at = NOW()
	`, s.NomineeID, s.TotalVotes, s.TotalRevenue, s.UniqueVoters, s.AverageVoteValue, s.LastVoteAt)
	return err
}

func (r *Repo) Get(ctx context.Context, nomineeID string) (*model.NomineeStats, error) {
	var s model.NomineeStats
	err := r.db.QueryRow(ctx, `
		SELECT nominee_id, total_votes, total_revenue, unique_voters,
		       average_vote_value, last_vote_at, updated_at
		FROM nominee_stats
		WHERE nominee_id = $1
	`, nomineeID).Scan(
		&s.NomineeID, &s.TotalVotes, &s.TotalRevenue, &s.UniqueVoters,
		&s.AverageVoteValue, &s.LastVoteAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CategoryLeaderboard groups confirmed votes at read time. Derived, not
// stored: there is no second source of truth to drift.
func (r *Repo) CategoryLeaderboard(ctx context.Context, categoryID string) ([]LeaderboardRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT n.id, n.full_name,
		       COUNT(v.id) AS total_votes,
		       COALESCE(SUM(v.amount), 0) AS total_revenue,
		       COUNT(DISTINCT v.user_id) AS unique_voters,
		       MAX(v.created_at) AS last_vote_at
		FROM nominees n
		LEFT JOIN votes v ON v.nominee_id = n.id AND v.status = 'confirmed'
		WHERE n.category_id = $1 AND n.approval_status = 'approved'
		GROUP BY n.id, n.full_name
		ORDER BY total_votes DESC, total_revenue DESC, n.full_name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []LeaderboardRow
	rank := 0
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.NomineeID, &row.NomineeName, &row.TotalVotes, &row.TotalRevenue, &row.UniqueVoters, &row.LastVoteAt); err != nil {
			return nil, err
		}
		rank++
		row.Rank = rank
		board = append(board, row)
	}
	return board, rows.Err()
}

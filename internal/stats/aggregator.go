package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Aggregator owns the nominee_stats projection. Nothing else writes it.
type Aggregator struct {
	repo   Repository
	logger *zerolog.Logger
}

func NewAggregator(repo Repository, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		repo:   repo,
		logger: logger,
	}
}

// Summarize folds confirmed votes into the nominee projection. Pure: calling
// it twice on the same input yields identical output, which is what makes
// redundant recomputes safe.
func Summarize(nomineeID uuid.UUID, votes []VoteFact) model.NomineeStats {
	s := model.NomineeStats{NomineeID: nomineeID}

	voters := make(map[string]struct{}, len(votes))
	var last time.Time
	for _, v := range votes {
		s.TotalVotes++
		s.TotalRevenue += v.Amount
		voters[v.UserID] = struct{}{}
		if v.CreatedAt.After(last) {
			last = v.CreatedAt
		}
	}
	s.UniqueVoters = int64(len(voters))
	if s.TotalVotes > 0 {
		s.AverageVoteValue = s.TotalRevenue / s.TotalVotes
		s.LastVoteAt = &last
	}
	return s
}

// Recompute refreshes the projection for one nominee from the votes table.
// Safe to call concurrently for different nominees and redundantly for the
// same one.
func (a *Aggregator) Recompute(ctx context.Context, nomineeID string) error {
	id, err := uuid.Parse(nomineeID)
	if err != nil {
		return fmt.Errorf("invalid nominee id: %w", err)
	}

	votes, err := a.repo.FetchConfirmedVotes(ctx, nomineeID)
	if err != nil {
		return fmt.Errorf("failed to fetch votes for nominee %s: %w", nomineeID, err)
	}

	summary := Summarize(id, votes)
	if err := a.repo.Upsert(ctx, &summary); err != nil {
		return fmt.Errorf("failed to upsert stats for nominee %s: %w", nomineeID, err)
	}

	a.logger.Debug().
		Str("nominee_id", nomineeID).
		Int64("total_votes", summary.TotalVotes).
		Int64("total_revenue", summary.TotalRevenue).
		Msg("nominee stats recomputed")

	return nil
}

func (a *Aggregator) Get(ctx context.Context, nomineeID string) (*model.NomineeStats, error) {
	return a.repo.Get(ctx, nomineeID)
}

func (a *Aggregator) CategoryLeaderboard(ctx context.Context, categoryID string) ([]LeaderboardRow, error) {
	return a.repo.CategoryLeaderboard(ctx, categoryID)
}

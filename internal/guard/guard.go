package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/directory"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
)

// velocityStore is the redis surface the guard needs: a sliding-window rate
// limit on initiation attempts and the per-user IP set. IP tracking is
// informational only and never blocks.
type velocityStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
	TrackVoterIP(ctx context.Context, userID, ip string, window time.Duration) (int64, error)
}

// Guard runs the eligibility checks a vote payment must pass before the
// gateway is ever called. All checks are read-only and short-circuit on the
// first failure.
type Guard struct {
	directory directory.Repository
	repo      Repository
	velocity  velocityStore
	cfg       *config.VotingConfig
	now       func() time.Time
}

func New(dir directory.Repository, repo Repository, velocity velocityStore, cfg *config.VotingConfig) *Guard {
	return &Guard{
		directory: dir,
		repo:      repo,
		velocity:  velocity,
		cfg:       cfg,
		now:       time.Now,
	}
}

type Request struct {
	UserID     string
	NomineeID  string
	CategoryID string
	Amount     int64
	VoterIP    string
}

// CheckEligibility returns nil when the vote may proceed and a validation
// error naming the first failed check otherwise.
func (g *Guard) CheckEligibility(ctx context.Context, req Request) error {
	logger := middleware.GetLogger(ctx)
	now := g.now()

	// 1. Request-level throttle, per user and per IP
	if g.velocity != nil && g.cfg.InitiateRateLimit > 0 {
		if err := g.checkThrottle(ctx, req); err != nil {
			return err
		}
	}

	// 2. Category exists, is active, and voting window is open
	category, err := g.directory.GetCategory(ctx, req.CategoryID)
	if errors.Is(err, directory.ErrNotFound) {
		return apperrors.CategoryNotFound(req.CategoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}
	if !category.Active {
		return apperrors.Validation("category is not active")
	}
	if !category.VotingOpenAt(now) {
		return apperrors.Validation("voting window for this category is closed")
	}

	// 3. Nominee exists, belongs to the category, and is approved
	nominee, err := g.directory.GetNominee(ctx, req.NomineeID)
	if errors.Is(err, directory.ErrNotFound) {
		return apperrors.NomineeNotFound(req.NomineeID)
	}
	if err != nil {
		return fmt.Errorf("failed to load nominee: %w", err)
	}
	if nominee.CategoryID != category.ID {
		return apperrors.Validation("nominee does not belong to this category")
	}
	if nominee.ApprovalStatus != model.ApprovalApproved {
		return apperrors.Validation("nominee is not approved for voting")
	}

	// 4. Amount must equal the vote price exactly
	if req.Amount != category.VotePrice {
		return apperrors.Validation(fmt.Sprintf("amount must equal the vote price of %d", category.VotePrice))
	}

	// 5. Per-category vote cap (nil cap means unlimited)
	if category.MaxVotesPerUser != nil {
		confirmed, err := g.repo.CountConfirmedVotes(ctx, req.UserID, req.CategoryID)
		if err != nil {
			return fmt.Errorf("failed to count confirmed votes: %w", err)
		}
		if confirmed >= *category.MaxVotesPerUser {
			return apperrors.Validation("maximum votes for this category reached")
		}
	}

	// 6. No in-flight pending payment for the same (user, nominee)
	pending, err := g.repo.HasPendingPayment(ctx, req.UserID, req.NomineeID, now.Add(-g.cfg.PendingWindow))
	if err != nil {
		return fmt.Errorf("failed to check pending payments: %w", err)
	}
	if pending {
		return apperrors.Validation("a payment for this nominee is already in progress")
	}

	// 7. Velocity: daily ceiling and cooldown
	daily, err := g.repo.CountConfirmedVotesSince(ctx, req.UserID, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to count daily votes: %w", err)
	}
	if daily >= g.cfg.DailyVoteCeiling {
		return apperrors.Validation("daily vote limit reached")
	}

	lastVote, err := g.repo.LastVoteAt(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to load last vote: %w", err)
	}
	if lastVote != nil && now.Sub(*lastVote) < g.cfg.VoteCooldown {
		return apperrors.Validation("please wait before voting again")
	}

	// Suspicion signal: many distinct IPs for one user. Logged, not blocked.
	if g.velocity != nil && req.VoterIP != "" {
		ipCount, err := g.velocity.TrackVoterIP(ctx, req.UserID, req.VoterIP, 24*time.Hour)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to track voter IP")
		} else if ipCount > int64(g.cfg.SuspiciousIPCount) {
			logger.Warn().
				Str("user_id", req.UserID).
				Int64("distinct_ips", ipCount).
				Msg("suspicious voting pattern: many distinct IPs in 24h")
		}
	}

	return nil
}

// checkThrottle rejects bursts of initiation attempts before any database
// work. A redis failure allows the request through; throttling is protective,
// not load-bearing.
func (g *Guard) checkThrottle(ctx context.Context, req Request) error {
	logger := middleware.GetLogger(ctx)

	keys := []string{"initiate:user:" + req.UserID}
	if req.VoterIP != "" {
		keys = append(keys, "initiate:ip:"+req.VoterIP)
	}
	for _, key := range keys {
		res, err := g.velocity.CheckRateLimit(ctx, key, g.cfg.InitiateRateLimit, g.cfg.InitiateRateWindow)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
			continue
		}
		if !res.Allowed {
			return apperrors.RateLimited("too many vote attempts, please retry shortly")
		}
	}
	return nil
}

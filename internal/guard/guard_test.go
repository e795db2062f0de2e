package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/directory"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	categories map[string]*model.Category
	nominees   map[string]*model.Nominee
}

func (f *fakeDirectory) GetCategory(_ context.Context, id string) (*model.Category, error) {
	if c, ok := f.categories[id]; ok {
		return c, nil
	}
	return nil, directory.ErrNotFound
}

func (f *fakeDirectory) GetNominee(_ context.Context, id string) (*model.Nominee, error) {
	if n, ok := f.nominees[id]; ok {
		return n, nil
	}
	return nil, directory.ErrNotFound
}

func (f *fakeDirectory) ListApprovedNominees(_ context.Context, _ string) ([]model.Nominee, error) {
	return nil, nil
}

type fakeGuardRepo struct {
	confirmedVotes int
	dailyVotes     int
	lastVoteAt     *time.Time
	pendingPayment bool
}

func (f *fakeGuardRepo) CountConfirmedVotes(_ context.Context, _, _ string) (int, error) {
	return f.confirmedVotes, nil
}

func (f *fakeGuardRepo) CountConfirmedVotesSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return f.dailyVotes, nil
}

func (f *fakeGuardRepo) LastVoteAt(_ context.Context, _ string) (*time.Time, error) {
	return f.lastVoteAt, nil
}

func (f *fakeGuardRepo) HasPendingPayment(_ context.Context, _, _ string, _ time.Time) (bool, error) {
	return f.pendingPayment, nil
}

type fakeVelocity struct {
	limitKeys []string
	limitErr  error
	blocked   map[string]bool
	ipCount   int64
}

func (f *fakeVelocity) CheckRateLimit(_ context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error) {
	f.limitKeys = append(f.limitKeys, key)
	if f.limitErr != nil {
		return nil, f.limitErr
	}
	if f.blocked[key] {
		return &redis.RateLimitResult{Allowed: false}, nil
	}
	return &redis.RateLimitResult{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
}

func (f *fakeVelocity) TrackVoterIP(_ context.Context, _, _ string, _ time.Duration) (int64, error) {
	return f.ipCount, nil
}

func testConfig() *config.VotingConfig {
	return &config.VotingConfig{
		PendingWindow:      15 * time.Minute,
		DailyVoteCeiling:   200,
		VoteCooldown:       30 * time.Second,
		SuspiciousIPCount:  3,
		InitiateRateLimit:  10,
		InitiateRateWindow: time.Minute,
	}
}

func intPtr(i int) *int { return &i }

func setupGuard(t *testing.T, repo *fakeGuardRepo) (*Guard, Request) {
	t.Helper()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	categoryID := uuid.New()
	nomineeID := uuid.New()
	userID := uuid.New()

	dir := &fakeDirectory{
		categories: map[string]*model.Category{
			categoryID.String(): {
				ID:          categoryID,
				Name:        "Best Lecturer",
				VotePrice:   10000,
				Currency:    "NGN",
				VotingStart: now.Add(-24 * time.Hour),
				VotingEnd:   now.Add(24 * time.Hour),
				Active:      true,
			},
		},
		nominees: map[string]*model.Nominee{
			nomineeID.String(): {
				ID:             nomineeID,
				CategoryID:     categoryID,
				FullName:       "Dr. Ada",
				ApprovalStatus: model.ApprovalApproved,
			},
		},
	}

	g := New(dir, repo, nil, testConfig())
	g.now = func() time.Time { return now }

	return g, Request{
		UserID:     userID.String(),
		NomineeID:  nomineeID.String(),
		CategoryID: categoryID.String(),
		Amount:     10000,
		VoterIP:    "203.0.113.5",
	}
}

func TestCheckEligibilityPasses(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	require.NoError(t, g.CheckEligibility(context.Background(), req))
}

func TestCheckEligibilityUnknownCategory(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	req.CategoryID = uuid.New().String()

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATEGORY_NOT_FOUND")
}

func TestCheckEligibilityInactiveCategory(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	g.directory.(*fakeDirectory).categories[req.CategoryID].Active = false

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestCheckEligibilityWindowClosed(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	c := g.directory.(*fakeDirectory).categories[req.CategoryID]
	c.VotingEnd = c.VotingStart.Add(time.Hour)

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestCheckEligibilityUnknownNominee(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	req.NomineeID = uuid.New().String()

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOMINEE_NOT_FOUND")
}

func TestCheckEligibilityNomineeWrongCategory(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	g.directory.(*fakeDirectory).nominees[req.NomineeID].CategoryID = uuid.New()

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestCheckEligibilityNomineeNotApproved(t *testing.T) {
	for _, status := range []model.ApprovalStatus{model.ApprovalPending, model.ApprovalRejected, model.ApprovalDisqualified} {
		t.Run(string(status), func(t *testing.T) {
			g, req := setupGuard(t, &fakeGuardRepo{})
			g.directory.(*fakeDirectory).nominees[req.NomineeID].ApprovalStatus = status

			err := g.CheckEligibility(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not approved")
		})
	}
}

func TestCheckEligibilityWrongAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
	}{
		{"underpayment", 9999},
		{"overpayment", 10001},
		{"zero", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, req := setupGuard(t, &fakeGuardRepo{})
			req.Amount = tt.amount

			err := g.CheckEligibility(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "vote price")
		})
	}
}

func TestCheckEligibilityVoteCap(t *testing.T) {
	repo := &fakeGuardRepo{confirmedVotes: 5}
	g, req := setupGuard(t, repo)
	g.directory.(*fakeDirectory).categories[req.CategoryID].MaxVotesPerUser = intPtr(5)

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum votes")

	// Below the cap passes
	repo.confirmedVotes = 4
	require.NoError(t, g.CheckEligibility(context.Background(), req))
}

func TestCheckEligibilityNilCapIsUnlimited(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{confirmedVotes: 100000})
	require.NoError(t, g.CheckEligibility(context.Background(), req))
}

func TestCheckEligibilityPendingPayment(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{pendingPayment: true})

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestCheckEligibilityDailyCeiling(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{dailyVotes: 200})

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily vote limit")
}

func TestCheckEligibilityThrottlesUser(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	vel := &fakeVelocity{blocked: map[string]bool{"initiate:user:" + req.UserID: true}}
	g.velocity = vel

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMITED")
	// Blocked before the IP bucket is even consulted
	assert.Equal(t, []string{"initiate:user:" + req.UserID}, vel.limitKeys)
}

func TestCheckEligibilityThrottlesIP(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	g.velocity = &fakeVelocity{blocked: map[string]bool{"initiate:ip:" + req.VoterIP: true}}

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMITED")
}

func TestCheckEligibilityThrottleChecksBothBuckets(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	vel := &fakeVelocity{}
	g.velocity = vel

	require.NoError(t, g.CheckEligibility(context.Background(), req))
	assert.Equal(t, []string{"initiate:user:" + req.UserID, "initiate:ip:" + req.VoterIP}, vel.limitKeys)
}

func TestCheckEligibilityThrottleRedisDownAllows(t *testing.T) {
	g, req := setupGuard(t, &fakeGuardRepo{})
	g.velocity = &fakeVelocity{limitErr: errors.New("connection refused")}

	// Throttling is protective; an unavailable limiter never blocks a vote
	require.NoError(t, g.CheckEligibility(context.Background(), req))
}

func TestCheckEligibilityCooldown(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	recent := now.Add(-10 * time.Second)
	g, req := setupGuard(t, &fakeGuardRepo{lastVoteAt: &recent})

	err := g.CheckEligibility(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait before voting")

	old := now.Add(-time.Minute)
	g2, req2 := setupGuard(t, &fakeGuardRepo{lastVoteAt: &old})
	require.NoError(t, g2.CheckEligibility(context.Background(), req2))
}

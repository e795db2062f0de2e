package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/guard"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentRepo struct {
	payments map[string]*model.Payment // keyed by internal reference
	outbox   []string                  // event types enqueued
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*model.Payment)}
}

func (f *fakePaymentRepo) Create(_ context.Context, p *model.Payment) error {
	if _, ok := f.payments[p.InternalReference]; ok {
		return apperrors.DuplicateReference(p.InternalReference)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.payments[p.InternalReference] = p
	return nil
}

func (f *fakePaymentRepo) GetByReference(_ context.Context, reference string) (*model.Payment, error) {
	if p, ok := f.payments[reference]; ok {
		return p, nil
	}
	for _, p := range f.payments {
		if p.GatewayReference == reference {
			return p, nil
		}
	}
	return nil, apperrors.PaymentNotFound(reference)
}

func (f *fakePaymentRepo) GetByID(_ context.Context, id string) (*model.Payment, error) {
	for _, p := range f.payments {
		if p.ID.String() == id {
			return p, nil
		}
	}
	return nil, apperrors.PaymentNotFound(id)
}

func (f *fakePaymentRepo) MarkSuccess(_ context.Context, p *model.Payment) (bool, error) {
	stored := f.payments[p.InternalReference]
	if stored.Status != model.PaymentPending && stored.Status != model.PaymentProcessing {
		return false, nil
	}
	stored.Status = model.PaymentSuccess
	stored.Fees = p.Fees
	stored.NetAmount = p.NetAmount
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(_ context.Context, reference, reason string) error {
	f.payments[reference].Status = model.PaymentFailed
	f.payments[reference].FailureReason = reason
	return nil
}

func (f *fakePaymentRepo) MarkExpired(_ context.Context, reference string) error {
	f.payments[reference].Status = model.PaymentExpired
	return nil
}

func (f *fakePaymentRepo) MarkRefunded(_ context.Context, id, reason, _ string) error {
	for _, p := range f.payments {
		if p.ID.String() == id {
			p.Status = model.PaymentRefunded
			p.RefundReason = reason
			return nil
		}
	}
	return apperrors.PaymentNotFound(id)
}

func (f *fakePaymentRepo) RecordWebhookReceipt(_ context.Context, _, _ string) error { return nil }

func (f *fakePaymentRepo) ListUnpromoted(_ context.Context) ([]model.Payment, error) {
	return nil, nil
}

func (f *fakePaymentRepo) ExpireStale(_ context.Context, _ int) (int64, error) { return 0, nil }

func (f *fakePaymentRepo) EnqueueOutbox(_ context.Context, eventType string, _ json.RawMessage, _, _ string) error {
	f.outbox = append(f.outbox, eventType)
	return nil
}

func (f *fakePaymentRepo) SaveWebhook(_ context.Context, _, _ string, _ json.RawMessage, _ string) error {
	return nil
}

type fakeVoteRepo struct {
	votes map[string]*model.Vote // keyed by payment reference
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[string]*model.Vote)}
}

func (f *fakeVoteRepo) Create(_ context.Context, v *model.Vote) (bool, error) {
	if _, ok := f.votes[v.PaymentReference]; ok {
		return false, nil
	}
	v.ID = uuid.New()
	f.votes[v.PaymentReference] = v
	return true, nil
}

func (f *fakeVoteRepo) GetByPaymentReference(_ context.Context, reference string) (*model.Vote, error) {
	return f.votes[reference], nil
}

func (f *fakeVoteRepo) MarkRefunded(_ context.Context, reference string) error {
	if v, ok := f.votes[reference]; ok {
		v.Status = model.VoteRefunded
	}
	return nil
}

type fakeGuard struct {
	err   error
	calls int
}

func (f *fakeGuard) CheckEligibility(_ context.Context, _ guard.Request) error {
	f.calls++
	return f.err
}

type fakeStats struct {
	recomputes []string
}

func (f *fakeStats) Recompute(_ context.Context, nomineeID string) error {
	f.recomputes = append(f.recomputes, nomineeID)
	return nil
}

type fakeIdem struct {
	cached   map[string][]byte
	inFlight map[string]bool
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{cached: make(map[string][]byte), inFlight: make(map[string]bool)}
}

func (f *fakeIdem) CheckAndSetIdempotency(_ context.Context, key string, _ time.Duration) ([]byte, error) {
	if res, ok := f.cached[key]; ok {
		return res, nil
	}
	f.inFlight[key] = true
	return nil, nil
}

func (f *fakeIdem) MarkIdempotencyComplete(_ context.Context, key string, response []byte, _ time.Duration) error {
	delete(f.inFlight, key)
	f.cached[key] = response
	return nil
}

func (f *fakeIdem) MarkIdempotencyFailed(_ context.Context, key string) error {
	delete(f.inFlight, key)
	return nil
}

type fakeAdapter struct {
	initCalls    int
	verifyCalls  int
	refundCalls  int
	verifyResult *gateway.VerifyResult
	refundErr    error
}

func (f *fakeAdapter) Name() string { return "paystack" }

func (f *fakeAdapter) Initialize(_ context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	f.initCalls++
	return &gateway.InitializeResult{
		GatewayReference: req.Reference,
		CheckoutURL:      "https://checkout.example.com/" + req.Reference,
		AccessCode:       "code123",
	}, nil
}

func (f *fakeAdapter) Verify(_ context.Context, _ string) (*gateway.VerifyResult, error) {
	f.verifyCalls++
	return f.verifyResult, nil
}

func (f *fakeAdapter) Refund(_ context.Context, _ string, _ int64, _ string) error {
	f.refundCalls++
	return f.refundErr
}

func (f *fakeAdapter) VerifySignature(_ []byte, _ string) bool { return true }

type serviceFixture struct {
	service *Service
	repo    *fakePaymentRepo
	votes   *fakeVoteRepo
	guard   *fakeGuard
	stats   *fakeStats
	idem    *fakeIdem
	adapter *fakeAdapter
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:    newFakePaymentRepo(),
		votes:   newFakeVoteRepo(),
		guard:   &fakeGuard{},
		stats:   &fakeStats{},
		idem:    newFakeIdem(),
		adapter: &fakeAdapter{},
		now:     time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	cfg := &config.VotingConfig{
		DefaultGateway:     "paystack",
		PaymentTTL:         30 * time.Minute,
		InitIdempotencyTTL: 24 * time.Hour,
	}

	f.service = NewService(f.repo, f.votes, f.guard, gateway.NewRegistry(f.adapter), f.stats, f.idem, cfg)
	f.service.now = func() time.Time { return f.now }
	return f
}

func validRequest() *types.InitiateVoteRequest {
	return &types.InitiateVoteRequest{
		UserID:     uuid.New().String(),
		NomineeID:  uuid.New().String(),
		CategoryID: uuid.New().String(),
		Amount:     10000,
		Currency:   "NGN",
		Email:      "voter@example.com",
	}
}

func (f *serviceFixture) seedPayment(t *testing.T, status model.PaymentStatus) *model.Payment {
	t.Helper()
	p := &model.Payment{
		ID:                uuid.New(),
		InternalReference: "AWD-" + uuid.New().String(),
		GatewayReference:  "GW-" + uuid.New().String(),
		UserID:            uuid.New(),
		NomineeID:         uuid.New(),
		CategoryID:        uuid.New(),
		Amount:            10000,
		NetAmount:         10000,
		Currency:          "NGN",
		Gateway:           "paystack",
		Status:            status,
		ExpiresAt:         f.now.Add(30 * time.Minute),
	}
	f.repo.payments[p.InternalReference] = p
	return p
}

func TestInitiatePayment(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.service.InitiatePayment(context.Background(), validRequest(), "idem-key-1", "203.0.113.5")

	require.NoError(t, err)
	assert.NotEmpty(t, res.InternalReference)
	assert.Contains(t, res.CheckoutURL, "https://checkout.example.com/")
	assert.Equal(t, 1, f.guard.calls)
	assert.Equal(t, 1, f.adapter.initCalls)

	p, err := f.repo.GetByReference(context.Background(), res.InternalReference)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, f.now.Add(30*time.Minute), p.ExpiresAt)
}

func TestInitiatePaymentGuardRejection(t *testing.T) {
	f := newServiceFixture(t)
	f.guard.err = apperrors.Validation("daily vote limit reached")

	_, err := f.service.InitiatePayment(context.Background(), validRequest(), "idem-key-1", "")

	require.Error(t, err)
	// Ineligible votes never reach the gateway
	assert.Equal(t, 0, f.adapter.initCalls)
	assert.Empty(t, f.repo.payments)
}

func TestInitiatePaymentIdempotentReplay(t *testing.T) {
	f := newServiceFixture(t)

	first, err := f.service.InitiatePayment(context.Background(), validRequest(), "idem-key-1", "")
	require.NoError(t, err)

	second, err := f.service.InitiatePayment(context.Background(), validRequest(), "idem-key-1", "")
	require.NoError(t, err)

	assert.Equal(t, first.InternalReference, second.InternalReference)
	assert.Equal(t, 1, f.adapter.initCalls)
	assert.Len(t, f.repo.payments, 1)
}

func TestVerifyPaymentSuccess(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	paidAt := f.now.Add(-time.Minute)
	f.adapter.verifyResult = &gateway.VerifyResult{
		Status:  gateway.VerifySuccess,
		Fees:    150,
		Channel: "card",
		PaidAt:  &paidAt,
	}

	got, v, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "203.0.113.5", "test-agent")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, got.Status)
	assert.Equal(t, int64(150), got.Fees)
	assert.Equal(t, int64(9850), got.NetAmount)

	require.NotNil(t, v)
	assert.Equal(t, p.InternalReference, v.PaymentReference)
	assert.Equal(t, model.VoteConfirmed, v.Status)
	assert.Equal(t, model.VerifiedByPoll, v.VerificationMethod)
	assert.Equal(t, int64(9850), v.NetAmount)

	assert.Equal(t, []string{p.NomineeID.String()}, f.stats.recomputes)
}

func TestVerifyPaymentShortCircuitsOnSuccess(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentSuccess)
	f.votes.votes[p.InternalReference] = &model.Vote{PaymentReference: p.InternalReference, Status: model.VoteConfirmed}

	got, v, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, got.Status)
	require.NotNil(t, v)
	// No gateway round trip for settled payments
	assert.Equal(t, 0, f.adapter.verifyCalls)
}

func TestVerifyPaymentExpired(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)
	p.ExpiresAt = f.now.Add(-time.Minute)

	got, v, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentExpired, got.Status)
	assert.Nil(t, v)
	assert.Equal(t, 0, f.adapter.verifyCalls)
	assert.Empty(t, f.votes.votes)
}

func TestVerifyPaymentGatewayFailure(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)
	f.adapter.verifyResult = &gateway.VerifyResult{Status: gateway.VerifyFailed}

	got, v, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, got.Status)
	assert.Nil(t, v)
	assert.Empty(t, f.votes.votes)
}

func TestVerifyPaymentStillPending(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)
	f.adapter.verifyResult = &gateway.VerifyResult{Status: gateway.VerifyPending}

	got, v, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)
	assert.Nil(t, v)
}

func successEvent(p *model.Payment) *types.PaymentSucceededEvent {
	return &types.PaymentSucceededEvent{
		Gateway:          p.Gateway,
		GatewayReference: p.GatewayReference,
		EventType:        "charge.success",
		Amount:           p.Amount,
		Fees:             150,
		Currency:         p.Currency,
		Channel:          "card",
	}
}

func TestHandleGatewaySuccess(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), successEvent(p)))

	assert.Equal(t, model.PaymentSuccess, p.Status)
	v := f.votes.votes[p.InternalReference]
	require.NotNil(t, v)
	assert.Equal(t, model.VerifiedByWebhook, v.VerificationMethod)
}

func TestHandleGatewaySuccessRedelivery(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)
	evt := successEvent(p)

	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), evt))
	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), evt))
	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), evt))

	// Exactly one vote no matter how many deliveries
	assert.Len(t, f.votes.votes, 1)
	assert.Equal(t, model.PaymentSuccess, p.Status)
}

func TestWebhookAndPollConverge(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	paidAt := f.now.Add(-time.Minute)
	f.adapter.verifyResult = &gateway.VerifyResult{Status: gateway.VerifySuccess, Fees: 150, PaidAt: &paidAt}

	_, _, err := f.service.VerifyPayment(context.Background(), p.InternalReference, "", "")
	require.NoError(t, err)
	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), successEvent(p)))

	assert.Len(t, f.votes.votes, 1)
}

func TestHandleGatewaySuccessStaleWebhook(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)
	p.ExpiresAt = f.now.Add(-time.Hour)

	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), successEvent(p)))

	// Expired payments are never promoted
	assert.Equal(t, model.PaymentExpired, p.Status)
	assert.Empty(t, f.votes.votes)
}

func TestHandleGatewaySuccessAfterRefund(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentSuccess)

	// Promotion never happened; the payment is refunded while unpromoted
	_, err := f.service.ProcessRefund(context.Background(), p.ID.String(), "duplicate charge", uuid.New().String())
	require.NoError(t, err)
	require.Empty(t, f.votes.votes)

	// A redelivered success event for the refunded payment must not mint a vote
	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), successEvent(p)))

	assert.Equal(t, model.PaymentRefunded, p.Status)
	assert.Empty(t, f.votes.votes)
}

func TestHandleGatewaySuccessTerminalPayment(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentFailed)

	require.NoError(t, f.service.HandleGatewaySuccess(context.Background(), successEvent(p)))

	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.Empty(t, f.votes.votes)
}

func TestHandleGatewayFailure(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	require.NoError(t, f.service.HandleGatewayFailure(context.Background(), p.GatewayReference, "insufficient funds"))
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.Equal(t, "insufficient funds", p.FailureReason)

	// A failure event never un-succeeds a payment
	succeeded := f.seedPayment(t, model.PaymentSuccess)
	require.NoError(t, f.service.HandleGatewayFailure(context.Background(), succeeded.GatewayReference, "late failure"))
	assert.Equal(t, model.PaymentSuccess, succeeded.Status)
}

func TestPromoteToVoteReturnsExistingOnRace(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentSuccess)

	existing := &model.Vote{ID: uuid.New(), PaymentReference: p.InternalReference, Status: model.VoteConfirmed}
	f.votes.votes[p.InternalReference] = existing

	v, err := f.service.PromoteToVote(context.Background(), p, model.VerifiedByWebhook, "", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, v.ID)
	assert.Len(t, f.votes.votes, 1)
}

func TestPromoteToVoteRejectsNonSuccess(t *testing.T) {
	f := newServiceFixture(t)

	for _, status := range []model.PaymentStatus{model.PaymentPending, model.PaymentFailed, model.PaymentExpired, model.PaymentRefunded} {
		p := f.seedPayment(t, status)
		_, err := f.service.PromoteToVote(context.Background(), p, model.VerifiedManually, "", "")
		require.Error(t, err)
	}
	assert.Empty(t, f.votes.votes)
}

func TestProcessRefund(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentSuccess)
	f.votes.votes[p.InternalReference] = &model.Vote{PaymentReference: p.InternalReference, Status: model.VoteConfirmed}

	got, err := f.service.ProcessRefund(context.Background(), p.ID.String(), "duplicate charge", uuid.New().String())

	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, got.Status)
	assert.Equal(t, 1, f.adapter.refundCalls)
	assert.Equal(t, model.VoteRefunded, f.votes.votes[p.InternalReference].Status)
	assert.Contains(t, f.stats.recomputes, p.NomineeID.String())
}

func TestProcessRefundRejectsNonSuccess(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	_, err := f.service.ProcessRefund(context.Background(), p.ID.String(), "reason", uuid.New().String())
	require.Error(t, err)
	assert.Equal(t, 0, f.adapter.refundCalls)
}

func TestManualPromote(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentSuccess)

	v, err := f.service.ManualPromote(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.VerifiedManually, v.VerificationMethod)

	// Re-promoting returns the same vote
	again, err := f.service.ManualPromote(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)
}

func TestManualPromoteRejectsPending(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, model.PaymentPending)

	_, err := f.service.ManualPromote(context.Background(), p.ID.String())
	require.Error(t, err)
}

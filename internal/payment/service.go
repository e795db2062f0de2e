package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/guard"
	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
	"github.com/Dprinces/Award-Portal-sub002/internal/vote"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/google/uuid"
)

type eligibilityChecker interface {
	CheckEligibility(ctx context.Context, req guard.Request) error
}

type idempotencyStore interface {
	CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	MarkIdempotencyFailed(ctx context.Context, key string) error
}

type statsRecomputer interface {
	Recompute(ctx context.Context, nomineeID string) error
}

// Service is the payment reconciliation engine: it initiates payments,
// reconciles gateway notifications and polls against stored payment state,
// and promotes each successful payment into exactly one vote.
type Service struct {
	repo     Repository
	votes    vote.Repository
	guard    eligibilityChecker
	gateways *gateway.Registry
	stats    statsRecomputer
	idem     idempotencyStore
	cfg      *config.VotingConfig
	now      func() time.Time
}

func NewService(repo Repository, votes vote.Repository, g eligibilityChecker, gateways *gateway.Registry, stats statsRecomputer, idem idempotencyStore, cfg *config.VotingConfig) *Service {
	return &Service{
		repo:     repo,
		votes:    votes,
		guard:    g,
		gateways: gateways,
		stats:    stats,
		idem:     idem,
		cfg:      cfg,
		now:      time.Now,
	}
}

func newInternalReference() string {
	return "AWD-" + strings.ToUpper(uuid.New().String())
}

// InitiatePayment runs the eligibility guard, initializes the charge with the
// configured gateway and persists the pending payment. The returned checkout
// URL is where the client completes payment out-of-band.
func (s *Service) InitiatePayment(ctx context.Context, req *types.InitiateVoteRequest, idempotencyKey, voterIP string) (*types.InitiateVoteResponse, error) {
	logger := middleware.GetLogger(ctx)

	cached, err := s.idem.CheckAndSetIdempotency(ctx, idempotencyKey, s.cfg.InitIdempotencyTTL)
	if cached != nil {
		logger.Info().Msg("Returning cached vote initiation response for idempotency key")
		var res types.InitiateVoteResponse
		if err := json.Unmarshal(cached, &res); err == nil {
			return &res, nil
		}
	}
	if errors.Is(err, redis.ErrKeyExists) {
		logger.Warn().Msg("Vote initiation still in progress with same idempotency key")
		return nil, apperrors.Validation("request in progress: please retry later")
	}
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckEligibility(ctx, guard.Request{
		UserID:     req.UserID,
		NomineeID:  req.NomineeID,
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		VoterIP:    voterIP,
	}); err != nil {
		s.idem.MarkIdempotencyFailed(ctx, idempotencyKey)
		return nil, err
	}

	adapter, err := s.gateways.Get(s.cfg.DefaultGateway)
	if err != nil {
		s.idem.MarkIdempotencyFailed(ctx, idempotencyKey)
		return nil, err
	}

	// Reference collisions are vanishingly rare; one retry with a fresh
	// reference covers them.
	var p *model.Payment
	var checkout *gateway.InitializeResult
	for attempt := 0; attempt < 2; attempt++ {
		reference := newInternalReference()

		checkout, err = adapter.Initialize(ctx, gateway.InitializeRequest{
			Reference:   reference,
			Amount:      req.Amount,
			Currency:    req.Currency,
			Email:       req.Email,
			CallbackURL: req.CallbackURL,
			Metadata: map[string]string{
				"user_id":     req.UserID,
				"nominee_id":  req.NomineeID,
				"category_id": req.CategoryID,
			},
		})
		if err != nil {
			s.idem.MarkIdempotencyFailed(ctx, idempotencyKey)
			return nil, err
		}

		p = &model.Payment{
			InternalReference: reference,
			GatewayReference:  checkout.GatewayReference,
			UserID:            uuid.MustParse(req.UserID),
			NomineeID:         uuid.MustParse(req.NomineeID),
			CategoryID:        uuid.MustParse(req.CategoryID),
			Amount:            req.Amount,
			NetAmount:         req.Amount,
			Currency:          req.Currency,
			Gateway:           adapter.Name(),
			Status:            model.PaymentPending,
			ExpiresAt:         s.now().Add(s.cfg.PaymentTTL),
		}

		err = s.repo.Create(ctx, p)
		if err == nil {
			break
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == "DUPLICATE_REFERENCE" {
			logger.Warn().Str("reference", reference).Msg("duplicate payment reference, retrying with a fresh one")
			continue
		}
		s.idem.MarkIdempotencyFailed(ctx, idempotencyKey)
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}
	if err != nil {
		s.idem.MarkIdempotencyFailed(ctx, idempotencyKey)
		return nil, err
	}

	res := &types.InitiateVoteResponse{
		InternalReference: p.InternalReference,
		GatewayReference:  p.GatewayReference,
		CheckoutURL:       checkout.CheckoutURL,
		AccessCode:        checkout.AccessCode,
		ExpiresAt:         p.ExpiresAt.Format(time.RFC3339),
	}

	if responseBytes, err := json.Marshal(res); err == nil {
		s.idem.MarkIdempotencyComplete(ctx, idempotencyKey, responseBytes, s.cfg.InitIdempotencyTTL)
	}

	logger.Info().
		Str("reference", p.InternalReference).
		Str("gateway", p.Gateway).
		Int64("amount", p.Amount).
		Msg("payment initiated")

	return res, nil
}

// VerifyPayment reconciles a payment through the polling/return-URL flow.
// Already-successful payments short-circuit without a gateway call.
func (s *Service) VerifyPayment(ctx context.Context, reference, voterIP, userAgent string) (*model.Payment, *model.Vote, error) {
	logger := middleware.GetLogger(ctx)

	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}

	// Idempotent short-circuit: a successful payment is never re-verified
	// with the gateway.
	if p.Status == model.PaymentSuccess || p.Status == model.PaymentRefunded {
		v, err := s.votes.GetByPaymentReference(ctx, p.InternalReference)
		if err != nil {
			return p, nil, err
		}
		return p, v, nil
	}

	if p.IsExpired(s.now()) {
		if err := s.repo.MarkExpired(ctx, p.InternalReference); err != nil {
			return nil, nil, err
		}
		p.Status = model.PaymentExpired
		return p, nil, nil
	}

	if p.Status.IsTerminal() {
		return p, nil, nil
	}

	adapter, err := s.gateways.Get(p.Gateway)
	if err != nil {
		return nil, nil, err
	}

	verifyRef := p.GatewayReference
	if verifyRef == "" {
		verifyRef = p.InternalReference
	}
	result, err := adapter.Verify(ctx, verifyRef)
	if err != nil {
		return nil, nil, err
	}

	switch result.Status {
	case gateway.VerifyPending:
		return p, nil, nil

	case gateway.VerifyFailed:
		if err := s.repo.MarkFailed(ctx, p.InternalReference, "gateway reported failure"); err != nil {
			return nil, nil, err
		}
		p.Status = model.PaymentFailed
		return p, nil, nil

	case gateway.VerifySuccess:
		if err := p.ApplyFees(result.Fees); err != nil {
			return nil, nil, fmt.Errorf("invalid fee breakdown from gateway: %w", err)
		}
		p.PaidAt = result.PaidAt
		p.Channel = result.Channel
		p.RawResponse = result.RawPayload

		transitioned, err := s.repo.MarkSuccess(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		p.Status = model.PaymentSuccess
		if !transitioned {
			logger.Info().Str("reference", p.InternalReference).Msg("payment already reconciled by another path")
		}

		v, err := s.PromoteToVote(ctx, p, model.VerifiedByPoll, voterIP, userAgent)
		if err != nil {
			// The payment stays success; the admin reconciliation view picks
			// up the missing vote.
			logger.Error().Err(err).Str("reference", p.InternalReference).Msg("vote promotion failed after successful payment")
			return p, nil, nil
		}
		return p, v, nil
	}

	return p, nil, nil
}

// HandleGatewaySuccess reconciles a verified "charge succeeded" notification.
// Called by the webhook worker after signature verification and outbox
// delivery. Redelivery is a no-op.
func (s *Service) HandleGatewaySuccess(ctx context.Context, evt *types.PaymentSucceededEvent) error {
	logger := middleware.GetLogger(ctx)

	p, err := s.repo.GetByReference(ctx, evt.GatewayReference)
	if err != nil {
		return err
	}

	if p.Status == model.PaymentSuccess {
		// Ensure the vote exists even if an earlier promotion was interrupted.
		_, err := s.PromoteToVote(ctx, p, model.VerifiedByWebhook, evt.IPAddress, "")
		return err
	}

	if p.Status == model.PaymentRefunded {
		// The money went back; a late success event must not mint a vote.
		logger.Warn().
			Str("reference", p.InternalReference).
			Msg("webhook for refunded payment, ignoring")
		return nil
	}

	if p.IsExpired(s.now()) {
		logger.Warn().
			Str("reference", p.InternalReference).
			Time("expires_at", p.ExpiresAt).
			Msg("stale webhook for expired payment, not promoting")
		return s.repo.MarkExpired(ctx, p.InternalReference)
	}

	if p.Status.IsTerminal() {
		logger.Warn().
			Str("reference", p.InternalReference).
			Str("status", string(p.Status)).
			Msg("webhook for payment in terminal state, ignoring")
		return nil
	}

	if err := p.ApplyFees(evt.Fees); err != nil {
		return fmt.Errorf("invalid fee breakdown in webhook: %w", err)
	}
	if !evt.PaidAt.IsZero() {
		paidAt := evt.PaidAt
		p.PaidAt = &paidAt
	}
	p.Channel = evt.Channel

	transitioned, err := s.repo.MarkSuccess(ctx, p)
	if err != nil {
		return err
	}
	p.Status = model.PaymentSuccess
	if !transitioned {
		logger.Info().Str("reference", p.InternalReference).Msg("payment already reconciled, webhook is a no-op")
	}

	_, err = s.PromoteToVote(ctx, p, model.VerifiedByWebhook, evt.IPAddress, "")
	return err
}

// HandleGatewayFailure marks a payment failed off a "charge failed" event.
func (s *Service) HandleGatewayFailure(ctx context.Context, gatewayReference, reason string) error {
	p, err := s.repo.GetByReference(ctx, gatewayReference)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() || p.Status == model.PaymentSuccess {
		return nil
	}
	return s.repo.MarkFailed(ctx, p.InternalReference, reason)
}

// PromoteToVote turns a successful payment into a confirmed vote exactly
// once. The unique constraint on votes.payment_reference is the idempotent
// boundary: the losing side of any race observes the existing vote instead of
// an error.
func (s *Service) PromoteToVote(ctx context.Context, p *model.Payment, method model.VerificationMethod, voterIP, userAgent string) (*model.Vote, error) {
	logger := middleware.GetLogger(ctx)

	if p.Status != model.PaymentSuccess {
		return nil, fmt.Errorf("cannot promote payment in status %s", p.Status)
	}

	v := &model.Vote{
		PaymentReference:   p.InternalReference,
		UserID:             p.UserID,
		NomineeID:          p.NomineeID,
		CategoryID:         p.CategoryID,
		Amount:             p.Amount,
		NetAmount:          p.NetAmount,
		Currency:           p.Currency,
		Status:             model.VoteConfirmed,
		VerificationMethod: method,
		VoterIP:            voterIP,
		UserAgent:          userAgent,
	}

	created, err := s.votes.Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to create vote: %w", err)
	}
	if !created {
		existing, err := s.votes.GetByPaymentReference(ctx, p.InternalReference)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	logger.Info().
		Str("reference", p.InternalReference).
		Str("nominee_id", p.NomineeID.String()).
		Int64("amount", p.Amount).
		Str("method", string(method)).
		Msg("payment promoted to vote")

	if err := s.stats.Recompute(ctx, p.NomineeID.String()); err != nil {
		logger.Error().Err(err).Str("nominee_id", p.NomineeID.String()).Msg("synchronous stats recompute failed")
	}

	// Async recompute as a drift backstop; best effort.
	if payload, err := json.Marshal(types.StatsRecomputeEvent{NomineeID: p.NomineeID.String(), Reason: "vote_promoted"}); err == nil {
		if err := s.repo.EnqueueOutbox(ctx, kafka.EventStatsRecompute, payload, p.NomineeID.String(), middleware.GetRequestIDFromContext(ctx)); err != nil {
			logger.Warn().Err(err).Msg("failed to enqueue stats recompute event")
		}
	}

	return v, nil
}

// ProcessRefund refunds a successful payment at the gateway, marks payment
// and vote refunded and recomputes the nominee statistics from scratch.
func (s *Service) ProcessRefund(ctx context.Context, paymentID, reason, actorID string) (*model.Payment, error) {
	logger := middleware.GetLogger(ctx)

	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentSuccess {
		return nil, apperrors.Validation("only successful payments can be refunded")
	}

	adapter, err := s.gateways.Get(p.Gateway)
	if err != nil {
		return nil, err
	}

	refundRef := p.GatewayReference
	if refundRef == "" {
		refundRef = p.InternalReference
	}
	if err := adapter.Refund(ctx, refundRef, p.Amount, reason); err != nil {
		return nil, err
	}

	if err := s.repo.MarkRefunded(ctx, paymentID, reason, actorID); err != nil {
		return nil, err
	}
	p.Status = model.PaymentRefunded
	p.RefundReason = reason

	// The vote is marked, never deleted; stats are recomputed, not
	// decremented, so refunds cannot introduce drift.
	if err := s.votes.MarkRefunded(ctx, p.InternalReference); err != nil {
		return nil, fmt.Errorf("failed to mark vote refunded: %w", err)
	}
	if err := s.stats.Recompute(ctx, p.NomineeID.String()); err != nil {
		logger.Error().Err(err).Str("nominee_id", p.NomineeID.String()).Msg("stats recompute after refund failed")
	}

	logger.Info().Str("payment_id", paymentID).Str("actor", actorID).Msg("payment refunded")
	return p, nil
}

// ManualPromote backfills the vote for a successful payment whose promotion
// was interrupted. Admin reconciliation path.
func (s *Service) ManualPromote(ctx context.Context, paymentID string) (*model.Vote, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentSuccess {
		return nil, apperrors.Validation("payment is not in a promotable state")
	}
	return s.PromoteToVote(ctx, p, model.VerifiedManually, "", "")
}

// ListUnpromoted surfaces payments stuck in success with no matching vote.
func (s *Service) ListUnpromoted(ctx context.Context) ([]model.Payment, error) {
	return s.repo.ListUnpromoted(ctx)
}

// SweepExpired expires stale pending payments in a bounded batch.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.ExpireStale(ctx, 100)
}

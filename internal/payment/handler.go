package payment

import (
	"encoding/json"
	"net/http"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.FromError(err)
	writeJSON(w, appErr.StatusCode, apperrors.ToResponse(appErr))
}

// InitiateVote starts the paid-vote flow and returns the checkout handle.
func (h *Handler) InitiateVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	logger.Info().Msg("Received request to initiate vote payment")

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		logger.Error().Msg("Idempotency-Key header is missing")
		writeError(w, apperrors.Validation("Idempotency-Key header is required"))
		return
	}

	var req types.InitiateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode vote initiation request")
		writeError(w, apperrors.Validation("invalid request payload"))
		return
	}

	if err := validate.Struct(&req); err != nil {
		logger.Error().Err(err).Msg("Validation error on vote initiation request")
		writeError(w, apperrors.Validation(err.Error()))
		return
	}

	res, err := h.service.InitiatePayment(ctx, &req, idemKey, r.RemoteAddr)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initiate vote payment")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
	logger.Info().Str("reference", res.InternalReference).Msg("Vote payment initiated successfully")
}

// Verify handles the polling/return-URL reconciliation flow.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeError(w, apperrors.Validation("payment reference is required"))
		return
	}

	p, v, err := h.service.VerifyPayment(ctx, reference, r.RemoteAddr, r.UserAgent())
	if err != nil {
		logger.Error().Err(err).Str("reference", reference).Msg("Failed to verify payment")
		writeError(w, err)
		return
	}

	res := types.VerifyPaymentResponse{
		Reference: p.InternalReference,
		Status:    string(p.Status),
		Amount:    p.Amount,
		Currency:  p.Currency,
	}
	if p.PaidAt != nil {
		res.PaidAt = p.PaidAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if v != nil {
		res.VoteID = v.ID.String()
	}

	writeJSON(w, http.StatusOK, res)
}

// Refund is the admin-triggered refund endpoint.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	paymentID := chi.URLParam(r, "id")

	var req types.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request payload"))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, apperrors.Validation(err.Error()))
		return
	}

	actorID, _ := ctx.Value(middleware.UserIDKey).(string)

	p, err := h.service.ProcessRefund(ctx, paymentID, req.Reason, actorID)
	if err != nil {
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to process refund")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Payment refunded",
		"reference": p.InternalReference,
		"status":    p.Status,
	})
}

// Unpromoted lists successful payments with no vote, for admin reconciliation.
func (h *Handler) Unpromoted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	payments, err := h.service.ListUnpromoted(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list unpromoted payments")
		writeError(w, err)
		return
	}
	if payments == nil {
		payments = []model.Payment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(payments),
		"payments": payments,
	})
}

// Promote backfills a vote for a stuck successful payment.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	paymentID := chi.URLParam(r, "id")

	v, err := h.service.ManualPromote(ctx, paymentID)
	if err != nil {
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to promote payment")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Vote backfilled",
		"vote_id": v.ID,
	})
}

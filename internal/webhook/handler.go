package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/pkg/constants"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/go-chi/chi/v5"
)

const (
	paystackSignatureHeader    = "x-paystack-signature"
	flutterwaveSignatureHeader = "verif-hash"
)

// Handler is the gateway notification intake. It verifies the signature over
// the exact raw body bytes, records a receipt and hands the event to the
// outbox. No JSON is re-serialized before the signature check.
type Handler struct {
	gateways *gateway.Registry
	repo     payment.Repository
}

func NewHandler(gateways *gateway.Registry, repo payment.Repository) *Handler {
	return &Handler{
		gateways: gateways,
		repo:     repo,
	}
}

func signatureHeaderFor(gatewayName string) string {
	if gatewayName == constants.GatewayFlutterwave {
		return flutterwaveSignatureHeader
	}
	return paystackSignatureHeader
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	gatewayName := chi.URLParam(r, "gateway")
	adapter, err := h.gateways.Get(gatewayName)
	if err != nil {
		logger.Warn().Str("gateway", gatewayName).Msg("webhook for unknown gateway")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	signature := r.Header.Get(signatureHeaderFor(gatewayName))
	if signature == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read webhook body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !adapter.VerifySignature(body, signature) {
		// Security event: reject with no state change
		logger.Error().Str("gateway", gatewayName).Msg("Invalid webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	logger.Info().Str("gateway", gatewayName).Msg("Webhook signature verified")

	event, reference, eventID, failure := parseEvent(gatewayName, body)
	if event == nil && !failure.valid {
		// Unknown event types are acknowledged and ignored
		logger.Info().Str("gateway", gatewayName).Msg("Ignoring unrecognized webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.repo.SaveWebhook(ctx, gatewayName, eventID, body, signature); err != nil {
		logger.Error().Err(err).Msg("Failed to store webhook receipt")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.repo.RecordWebhookReceipt(ctx, reference, signature); err != nil {
		logger.Error().Err(err).Msg("Failed to record webhook metadata on payment")
	}

	if failure.valid {
		payload, _ := json.Marshal(map[string]string{
			"gateway":           gatewayName,
			"gateway_reference": reference,
			"reason":            failure.reason,
		})
		if err := h.repo.EnqueueOutbox(ctx, kafka.EventPaymentFailed, payload, reference, middleware.GetRequestIDFromContext(ctx)); err != nil {
			logger.Error().Err(err).Msg("Failed to enqueue failed-payment event")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal webhook event")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.repo.EnqueueOutbox(ctx, kafka.EventPaymentSucceeded, payload, reference, middleware.GetRequestIDFromContext(ctx)); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue succeeded-payment event")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logger.Info().
		Str("gateway", gatewayName).
		Str("reference", reference).
		Msg("Webhook stored in outbox")
	w.WriteHeader(http.StatusOK)
}

type failureEvent struct {
	valid  bool
	reason string
}

// parseEvent normalizes a gateway event into the outbox payload. A nil event
// with an invalid failure means the event type is unknown.
func parseEvent(gatewayName string, body []byte) (*types.PaymentSucceededEvent, string, string, failureEvent) {
	switch gatewayName {
	case constants.GatewayPaystack:
		var evt types.PaystackWebhookEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil, "", "", failureEvent{}
		}
		eventID := fmt.Sprintf("%d", evt.Data.ID)
		switch evt.Event {
		case "charge.success":
			out := &types.PaymentSucceededEvent{
				Gateway:          gatewayName,
				GatewayReference: evt.Data.Reference,
				EventType:        evt.Event,
				Amount:           evt.Data.Amount,
				Fees:             evt.Data.Fees,
				Currency:         evt.Data.Currency,
				Channel:          evt.Data.Channel,
				IPAddress:        evt.Data.IPAddress,
			}
			if evt.Data.PaidAt != nil {
				out.PaidAt = *evt.Data.PaidAt
			}
			return out, evt.Data.Reference, eventID, failureEvent{}
		case "charge.failed":
			return nil, evt.Data.Reference, eventID, failureEvent{valid: true, reason: evt.Data.GatewayResponse}
		default:
			return nil, "", "", failureEvent{}
		}

	case constants.GatewayFlutterwave:
		var evt types.FlutterwaveWebhookEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil, "", "", failureEvent{}
		}
		eventID := fmt.Sprintf("%d", evt.Data.ID)
		if evt.Event != "charge.completed" {
			return nil, "", "", failureEvent{}
		}
		switch evt.Data.Status {
		case "successful":
			out := &types.PaymentSucceededEvent{
				Gateway:          gatewayName,
				GatewayReference: evt.Data.TxRef,
				EventType:        evt.Event,
				Amount:           gateway.MajorToMinor(evt.Data.Amount),
				Fees:             gateway.MajorToMinor(evt.Data.AppFee),
				Currency:         evt.Data.Currency,
				Channel:          evt.Data.PaymentType,
				IPAddress:        evt.Data.IP,
			}
			if evt.Data.CreatedAt != nil {
				out.PaidAt = *evt.Data.CreatedAt
			}
			return out, evt.Data.TxRef, eventID, failureEvent{}
		case "failed":
			return nil, evt.Data.TxRef, eventID, failureEvent{valid: true, reason: "charge failed"}
		default:
			return nil, "", "", failureEvent{}
		}
	}
	return nil, "", "", failureEvent{}
}

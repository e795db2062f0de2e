package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRepo struct {
	webhooks []string // event ids stored
	outbox   []string // event types enqueued
	receipts []string // gateway references receipted
}

func (r *recordingRepo) Create(_ context.Context, _ *model.Payment) error { return nil }
func (r *recordingRepo) GetByReference(_ context.Context, _ string) (*model.Payment, error) {
	return nil, nil
}
func (r *recordingRepo) GetByID(_ context.Context, _ string) (*model.Payment, error) {
	return nil, nil
}
func (r *recordingRepo) MarkSuccess(_ context.Context, _ *model.Payment) (bool, error) {
	return false, nil
}
func (r *recordingRepo) MarkFailed(_ context.Context, _, _ string) error      { return nil }
func (r *recordingRepo) MarkExpired(_ context.Context, _ string) error        { return nil }
func (r *recordingRepo) MarkRefunded(_ context.Context, _, _, _ string) error { return nil }

func (r *recordingRepo) RecordWebhookReceipt(_ context.Context, gatewayReference, _ string) error {
	r.receipts = append(r.receipts, gatewayReference)
	return nil
}

func (r *recordingRepo) ListUnpromoted(_ context.Context) ([]model.Payment, error) {
	return nil, nil
}
func (r *recordingRepo) ExpireStale(_ context.Context, _ int) (int64, error) { return 0, nil }

func (r *recordingRepo) EnqueueOutbox(_ context.Context, eventType string, _ json.RawMessage, _, _ string) error {
	r.outbox = append(r.outbox, eventType)
	return nil
}

func (r *recordingRepo) SaveWebhook(_ context.Context, _, eventID string, _ json.RawMessage, _ string) error {
	r.webhooks = append(r.webhooks, eventID)
	return nil
}

const testSecret = "sk_test_secret"

func signBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func setupWebhook(t *testing.T) (*chi.Mux, *recordingRepo) {
	t.Helper()

	log := zerolog.Nop()
	registry := gateway.NewRegistry(
		gateway.NewPaystackAdapter(&config.PaystackConfig{SecretKey: testSecret}, time.Second, &log),
		gateway.NewFlutterwaveAdapter(&config.FlutterwaveConfig{SecretKey: "flw", WebhookSecret: "verif-secret"}, time.Second, &log),
	)

	repo := &recordingRepo{}
	h := NewHandler(registry, repo)

	r := chi.NewRouter()
	r.Post("/webhooks/{gateway}", h.HandleWebhook)
	return r, repo
}

func paystackSuccessBody() []byte {
	return []byte(`{
		"event": "charge.success",
		"data": {
			"id": 12345,
			"status": "success",
			"reference": "AWD-REF-1",
			"amount": 10000,
			"fees": 150,
			"currency": "NGN",
			"channel": "card"
		}
	}`)
}

func TestHandleWebhookValidSignature(t *testing.T) {
	router, repo := setupWebhook(t)

	body := paystackSuccessBody()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signBody(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"12345"}, repo.webhooks)
	assert.Equal(t, []string{"AWD-REF-1"}, repo.receipts)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, "awards.payment.succeeded", repo.outbox[0])
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	router, repo := setupWebhook(t)

	body := paystackSuccessBody()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "deadbeef")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// Rejected with zero state change
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.webhooks)
	assert.Empty(t, repo.receipts)
	assert.Empty(t, repo.outbox)
}

func TestHandleWebhookTamperedBody(t *testing.T) {
	router, repo := setupWebhook(t)

	body := paystackSuccessBody()
	sig := signBody(body)
	tampered := bytes.Replace(body, []byte("AWD-REF-1"), []byte("AWD-REF-2"), 1)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(tampered))
	req.Header.Set("x-paystack-signature", sig)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.outbox)
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	router, repo := setupWebhook(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(paystackSuccessBody()))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.outbox)
}

func TestHandleWebhookChargeFailed(t *testing.T) {
	router, repo := setupWebhook(t)

	body := []byte(`{
		"event": "charge.failed",
		"data": {
			"id": 777,
			"reference": "AWD-REF-9",
			"gateway_response": "Insufficient funds"
		}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signBody(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, "awards.payment.failed", repo.outbox[0])
}

func TestHandleWebhookUnknownEventAcked(t *testing.T) {
	router, repo := setupWebhook(t)

	body := []byte(`{"event": "subscription.create", "data": {"id": 1}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signBody(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// Acknowledged so the gateway stops retrying, but nothing stored
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, repo.outbox)
	assert.Empty(t, repo.webhooks)
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	router, _ := setupWebhook(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseEventFlutterwaveRoundsMinorUnits(t *testing.T) {
	// 19.99 and 1.15 are not exactly representable in binary floating point;
	// a truncating conversion yields 1998 and 114.
	body := []byte(`{
		"event": "charge.completed",
		"data": {
			"id": 556,
			"tx_ref": "AWD-REF-6",
			"status": "successful",
			"amount": 19.99,
			"app_fee": 1.15,
			"currency": "NGN",
			"payment_type": "card"
		}
	}`)

	event, reference, eventID, failure := parseEvent("flutterwave", body)

	require.NotNil(t, event)
	assert.Equal(t, "AWD-REF-6", reference)
	assert.Equal(t, "556", eventID)
	assert.False(t, failure.valid)
	assert.Equal(t, int64(1999), event.Amount)
	assert.Equal(t, int64(115), event.Fees)
}

func TestHandleWebhookFlutterwave(t *testing.T) {
	router, repo := setupWebhook(t)

	body := []byte(`{
		"event": "charge.completed",
		"data": {
			"id": 555,
			"tx_ref": "AWD-REF-5",
			"status": "successful",
			"amount": 100.00,
			"app_fee": 1.40,
			"currency": "NGN",
			"payment_type": "card"
		}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", bytes.NewReader(body))
	req.Header.Set("verif-hash", "verif-secret")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, "awards.payment.succeeded", repo.outbox[0])
	assert.Equal(t, []string{"AWD-REF-5"}, repo.receipts)
}

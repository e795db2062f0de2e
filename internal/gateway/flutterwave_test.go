package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorMajorConversion(t *testing.T) {
	assert.Equal(t, "100.00", MinorToMajor(10000))
	assert.Equal(t, "0.50", MinorToMajor(50))
	assert.Equal(t, "1234.56", MinorToMajor(123456))

	assert.Equal(t, int64(10000), MajorToMinor(100.00))
	assert.Equal(t, int64(50), MajorToMinor(0.50))
	assert.Equal(t, int64(123456), MajorToMinor(1234.56))

	// Round trip holds for every representable amount
	for _, minor := range []int64{1, 99, 100, 10000, 999999} {
		major, err := strconv.ParseFloat(MinorToMajor(minor), 64)
		require.NoError(t, err)
		assert.Equal(t, minor, MajorToMinor(major))
	}
}

func TestFlutterwaveInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer flw_test_secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"message": "Hosted Link",
			"data": {"link": "https://checkout.flutterwave.com/pay/xyz"}
		}`))
	}))
	defer srv.Close()

	log := zerolog.Nop()
	adapter := NewFlutterwaveAdapter(&config.FlutterwaveConfig{
		SecretKey: "flw_test_secret",
		BaseURL:   srv.URL,
	}, 5*time.Second, &log)

	result, err := adapter.Initialize(context.Background(), InitializeRequest{
		Reference: "AWD-REF-1",
		Amount:    10000,
		Currency:  "NGN",
		Email:     "voter@example.com",
	})

	require.NoError(t, err)
	// Flutterwave checkout is keyed by the merchant reference
	assert.Equal(t, "AWD-REF-1", result.GatewayReference)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/xyz", result.CheckoutURL)
}

func TestFlutterwaveVerifyConvertsUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "AWD-REF-1", r.URL.Query().Get("tx_ref"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"message": "Transaction fetched successfully",
			"data": {
				"id": 98765,
				"tx_ref": "AWD-REF-1",
				"status": "successful",
				"amount": 100.00,
				"app_fee": 1.40,
				"currency": "NGN",
				"payment_type": "card"
			}
		}`))
	}))
	defer srv.Close()

	log := zerolog.Nop()
	adapter := NewFlutterwaveAdapter(&config.FlutterwaveConfig{
		SecretKey: "flw_test_secret",
		BaseURL:   srv.URL,
	}, 5*time.Second, &log)

	result, err := adapter.Verify(context.Background(), "AWD-REF-1")
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, result.Status)
	assert.Equal(t, int64(140), result.Fees)
	assert.Equal(t, "card", result.Channel)
}

func TestFlutterwaveVerifySignature(t *testing.T) {
	log := zerolog.Nop()
	adapter := NewFlutterwaveAdapter(&config.FlutterwaveConfig{
		SecretKey:     "flw_test_secret",
		WebhookSecret: "my-verif-hash",
	}, time.Second, &log)

	body := []byte(`{"event":"charge.completed"}`)

	assert.True(t, adapter.VerifySignature(body, "my-verif-hash"))
	assert.False(t, adapter.VerifySignature(body, "wrong-hash"))
	assert.False(t, adapter.VerifySignature(body, ""))

	// No configured secret means nothing verifies
	unconfigured := NewFlutterwaveAdapter(&config.FlutterwaveConfig{
		SecretKey: "flw_test_secret",
	}, time.Second, &log)
	assert.False(t, unconfigured.VerifySignature(body, "my-verif-hash"))
}

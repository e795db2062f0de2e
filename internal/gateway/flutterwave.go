package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/pkg/constants"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/rs/zerolog"
)

// FlutterwaveAdapter talks to the Flutterwave v3 API. Flutterwave amounts are
// in major units on the wire, so the conversion happens here and nowhere else.
type FlutterwaveAdapter struct {
	httpClient    *http.Client
	secretKey     string
	webhookSecret string
	baseURL       string
	logger        *zerolog.Logger
}

func NewFlutterwaveAdapter(cfg *config.FlutterwaveConfig, timeout time.Duration, logger *zerolog.Logger) *FlutterwaveAdapter {
	return &FlutterwaveAdapter{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       cfg.BaseURL,
		logger:        logger,
	}
}

func (a *FlutterwaveAdapter) Name() string {
	return constants.GatewayFlutterwave
}

// MinorToMajor renders minor currency units as the two-decimal string the
// Flutterwave API expects.
func MinorToMajor(amount int64) string {
	return strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}

// MajorToMinor converts a major-unit amount back to minor units, rounding to
// the nearest unit so fees like 1.15 never truncate to 114.
func MajorToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (a *FlutterwaveAdapter) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := types.FlutterwavePaymentRequest{
		TxRef:       req.Reference,
		Amount:      MinorToMajor(req.Amount),
		Currency:    req.Currency,
		RedirectURL: req.CallbackURL,
		Customer:    types.FlwCustomer{Email: req.Email},
		Meta:        req.Metadata,
		Customizations: types.FlwCustomizations{
			Title: "Awards Vote",
		},
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}

	var resp types.FlutterwavePaymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse flutterwave response: %w", err)
	}

	if resp.Status != "success" {
		return nil, apperrors.GatewayRejected(a.Name(), resp.Message)
	}

	// Flutterwave keys the checkout session by the merchant tx_ref
	return &InitializeResult{
		GatewayReference: req.Reference,
		CheckoutURL:      resp.Data.Link,
	}, nil
}

func (a *FlutterwaveAdapter) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	respBody, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp types.FlutterwaveVerifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse flutterwave response: %w", err)
	}

	if resp.Status != "success" {
		return nil, apperrors.GatewayRejected(a.Name(), resp.Message)
	}

	result := &VerifyResult{
		PaidAt:     resp.Data.CreatedAt,
		Fees:       MajorToMinor(resp.Data.AppFee),
		Channel:    resp.Data.PaymentType,
		IPAddress:  resp.Data.IP,
		RawPayload: respBody,
	}

	switch resp.Data.Status {
	case "successful":
		result.Status = VerifySuccess
	case "failed", "cancelled":
		result.Status = VerifyFailed
	default:
		result.Status = VerifyPending
	}

	return result, nil
}

func (a *FlutterwaveAdapter) Refund(ctx context.Context, reference string, amount int64, reason string) error {
	// The refund endpoint needs the numeric transaction id, so resolve the
	// reference first.
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	respBody, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var verify types.FlutterwaveVerifyResponse
	if err := json.Unmarshal(respBody, &verify); err != nil {
		return fmt.Errorf("failed to parse flutterwave response: %w", err)
	}
	if verify.Status != "success" {
		return apperrors.GatewayRejected(a.Name(), verify.Message)
	}

	body := map[string]any{
		"amount":   MinorToMajor(amount),
		"comments": reason,
	}
	refundPath := fmt.Sprintf("/transactions/%d/refund", verify.Data.ID)
	refundBody, err := a.doRequest(ctx, http.MethodPost, refundPath, body)
	if err != nil {
		return err
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(refundBody, &resp); err != nil {
		return fmt.Errorf("failed to parse flutterwave response: %w", err)
	}
	if resp.Status != "success" {
		return apperrors.GatewayRejected(a.Name(), resp.Message)
	}
	return nil
}

// VerifySignature checks the verif-hash header. Flutterwave sends the
// configured secret hash verbatim, so this is a constant-time equality check
// rather than a digest. The raw body is accepted for interface symmetry.
func (a *FlutterwaveAdapter) VerifySignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" || a.webhookSecret == "" {
		return false
	}
	return hmac.Equal([]byte(a.webhookSecret), []byte(signatureHeader))
}

func (a *FlutterwaveAdapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := a.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		a.logger.Error().Err(err).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Msg("Flutterwave request failed")
		return nil, apperrors.GatewayUnavailable(a.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.GatewayUnavailable(a.Name(), err)
	}

	if resp.StatusCode >= 500 {
		a.logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Str("body", string(respBody)).
			Msg("Flutterwave server error")
		return nil, apperrors.GatewayUnavailable(a.Name(), fmt.Errorf("flutterwave error: status=%d", resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		a.logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Str("body", string(respBody)).
			Msg("Flutterwave API error response")
		return nil, apperrors.GatewayRejected(a.Name(), fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(respBody)))
	}

	a.logger.Info().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("url", url).
		Int64("duration_ms", duration).
		Msg("Flutterwave API request successful")

	return respBody, nil
}

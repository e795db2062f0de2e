package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/pkg/constants"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/rs/zerolog"
)

type PaystackAdapter struct {
	httpClient    *http.Client
	secretKey     string
	webhookSecret string
	baseURL       string
	logger        *zerolog.Logger
}

func NewPaystackAdapter(cfg *config.PaystackConfig, timeout time.Duration, logger *zerolog.Logger) *PaystackAdapter {
	webhookSecret := cfg.WebhookSecret
	if webhookSecret == "" {
		// Paystack signs webhooks with the account secret key
		webhookSecret = cfg.SecretKey
	}
	return &PaystackAdapter{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
		secretKey:     cfg.SecretKey,
		webhookSecret: webhookSecret,
		baseURL:       cfg.BaseURL,
		logger:        logger,
	}
}

func (a *PaystackAdapter) Name() string {
	return constants.GatewayPaystack
}

func (a *PaystackAdapter) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := types.PaystackInitializeRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var resp types.PaystackInitializeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse paystack response: %w", err)
	}

	if !resp.Status {
		return nil, apperrors.GatewayRejected(a.Name(), resp.Message)
	}

	return &InitializeResult{
		GatewayReference: resp.Data.Reference,
		CheckoutURL:      resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
	}, nil
}

func (a *PaystackAdapter) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var resp types.PaystackVerifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse paystack response: %w", err)
	}

	if !resp.Status {
		return nil, apperrors.GatewayRejected(a.Name(), resp.Message)
	}

	result := &VerifyResult{
		PaidAt:     resp.Data.PaidAt,
		Fees:       resp.Data.Fees,
		Channel:    resp.Data.Channel,
		IPAddress:  resp.Data.IPAddress,
		RawPayload: respBody,
	}

	switch resp.Data.Status {
	case "success":
		result.Status = VerifySuccess
	case "failed", "abandoned", "reversed":
		result.Status = VerifyFailed
	default:
		result.Status = VerifyPending
	}

	return result, nil
}

func (a *PaystackAdapter) Refund(ctx context.Context, reference string, amount int64, reason string) error {
	body := map[string]any{
		"transaction":   reference,
		"amount":        amount,
		"merchant_note": reason,
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/refund", body)
	if err != nil {
		return err
	}

	var resp types.PaystackRefundResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to parse paystack response: %w", err)
	}

	if !resp.Status {
		return apperrors.GatewayRejected(a.Name(), resp.Message)
	}
	return nil
}

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body, hex encoded, compared in constant time.
func (a *PaystackAdapter) VerifySignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(a.webhookSecret))
	if _, err := mac.Write(rawBody); err != nil {
		return false
	}

	expectedSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(signatureHeader))
}

func (a *PaystackAdapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
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
			Msg("Paystack request failed")
		return nil, apperrors.GatewayUnavailable(a.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		a.logger.Error().Err(err).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Msg("Failed to read Paystack response body")
		return nil, apperrors.GatewayUnavailable(a.Name(), err)
	}

	if resp.StatusCode >= 500 {
		a.logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Str("body", string(respBody)).
			Msg("Paystack server error")
		return nil, apperrors.GatewayUnavailable(a.Name(), fmt.Errorf("paystack error: status=%d", resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		a.logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Str("body", string(respBody)).
			Msg("Paystack API error response")
		return nil, apperrors.GatewayRejected(a.Name(), fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(respBody)))
	}

	a.logger.Info().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("url", url).
		Int64("duration_ms", duration).
		Msg("Paystack API request successful")

	return respBody, nil
}

package types

import "time"

type PaystackInitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type PaystackInitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type PaystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64      `json:"id"`
		Status          string     `json:"status"`
		Reference       string     `json:"reference"`
		Amount          int64      `json:"amount"`
		GatewayResponse string     `json:"gateway_response"`
		PaidAt          *time.Time `json:"paid_at"`
		Channel         string     `json:"channel"`
		Currency        string     `json:"currency"`
		IPAddress       string     `json:"ip_address"`
		Fees            int64      `json:"fees"`
	} `json:"data"`
}

type PaystackRefundResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

type PaystackWebhookEvent struct {
	Event string              `json:"event"`
	Data  PaystackWebhookData `json:"data"`
}

type PaystackWebhookData struct {
	ID              int64      `json:"id"`
	Domain          string     `json:"domain"`
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Message         *string    `json:"message"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at"`
	CreatedAt       time.Time  `json:"created_at"`
	Channel         string     `json:"channel"`
	Currency        string     `json:"currency"`
	IPAddress       string     `json:"ip_address"`
	Fees            int64      `json:"fees"`
	Metadata        struct {
		UserID     string `json:"user_id"`
		NomineeID  string `json:"nominee_id"`
		CategoryID string `json:"category_id"`
		PaymentID  string `json:"payment_id"`
	} `json:"metadata"`
}

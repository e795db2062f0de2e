package types

import "time"

type FlutterwavePaymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
	Customer       FlwCustomer       `json:"customer"`
	Meta           map[string]string `json:"meta,omitempty"`
	Customizations FlwCustomizations `json:"customizations"`
}

type FlwCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type FlwCustomizations struct {
	Title string `json:"title,omitempty"`
}

type FlutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type FlutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID            int64      `json:"id"`
		TxRef         string     `json:"tx_ref"`
		FlwRef        string     `json:"flw_ref"`
		Amount        float64    `json:"amount"`
		Currency      string     `json:"currency"`
		ChargedAmount float64    `json:"charged_amount"`
		AppFee        float64    `json:"app_fee"`
		Status        string     `json:"status"`
		PaymentType   string     `json:"payment_type"`
		CreatedAt     *time.Time `json:"created_at"`
		IP            string     `json:"ip"`
	} `json:"data"`
}

type FlutterwaveWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID          int64      `json:"id"`
		TxRef       string     `json:"tx_ref"`
		FlwRef      string     `json:"flw_ref"`
		Amount      float64    `json:"amount"`
		Currency    string     `json:"currency"`
		AppFee      float64    `json:"app_fee"`
		Status      string     `json:"status"`
		PaymentType string     `json:"payment_type"`
		CreatedAt   *time.Time `json:"created_at"`
		IP          string     `json:"ip"`
		Customer    struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

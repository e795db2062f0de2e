package types

import "time"

type InitiateVoteRequest struct {
	Email       string `json:"email" validate:"required,email"`
	UserID      string `json:"user_id" validate:"required,uuid4"`
	NomineeID   string `json:"nominee_id" validate:"required,uuid4"`
	CategoryID  string `json:"category_id" validate:"required,uuid4"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	CallbackURL string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

type InitiateVoteResponse struct {
	InternalReference string `json:"internal_reference"`
	GatewayReference  string `json:"gateway_reference"`
	CheckoutURL       string `json:"checkout_url"`
	AccessCode        string `json:"access_code,omitempty"`
	ExpiresAt         string `json:"expires_at"`
}

type VerifyPaymentResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at,omitempty"`
	VoteID    string `json:"vote_id,omitempty"`
}

type RefundRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// PaymentSucceededEvent is the outbox payload relayed to the webhook worker
// after a gateway notification passes signature verification.
type PaymentSucceededEvent struct {
	Gateway          string    `json:"gateway"`
	GatewayReference string    `json:"gateway_reference"`
	EventType        string    `json:"event_type"`
	Amount           int64     `json:"amount"`
	Fees             int64     `json:"fees"`
	Currency         string    `json:"currency"`
	Channel          string    `json:"channel"`
	PaidAt           time.Time `json:"paid_at"`
	IPAddress        string    `json:"ip_address,omitempty"`
}

// StatsRecomputeEvent asks the stats worker to refresh one nominee projection.
type StatsRecomputeEvent struct {
	NomineeID string `json:"nominee_id"`
	Reason    string `json:"reason"`
}

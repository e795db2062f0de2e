package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	FullName string    `json:"full_name" validate:"required,min=2,max=100"`
	Email    string    `json:"email" validate:"required,email"`
	Role     string    `json:"role" validate:"required,oneof=voter admin"`
	Model
}

type Category struct {
	ID              uuid.UUID `json:"id" validate:"required"`
	Name            string    `json:"name" validate:"required,min=2,max=150"`
	Description     string    `json:"description,omitempty"`
	VotePrice       int64     `json:"vote_price" validate:"required,gt=0"`
	Currency        string    `json:"currency" validate:"required,len=3"`
	MaxVotesPerUser *int      `json:"max_votes_per_user,omitempty"`
	VotingStart     time.Time `json:"voting_start" validate:"required"`
	VotingEnd       time.Time `json:"voting_end" validate:"required"`
	Active          bool      `json:"active"`
	Model
}

// VotingOpenAt reports whether the category accepts votes at the given time.
func (c *Category) VotingOpenAt(t time.Time) bool {
	return c.Active && !t.Before(c.VotingStart) && !t.After(c.VotingEnd)
}

type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalDisqualified ApprovalStatus = "disqualified"
)

type Nominee struct {
	ID             uuid.UUID      `json:"id" validate:"required"`
	CategoryID     uuid.UUID      `json:"category_id" validate:"required"`
	FullName       string         `json:"full_name" validate:"required,min=2,max=150"`
	Bio            string         `json:"bio,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status" validate:"required,oneof=pending approved rejected disqualified"`
	Model
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccess    PaymentStatus = "success"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentExpired    PaymentStatus = "expired"
	PaymentRefunded   PaymentStatus = "refunded"
)

// validTransitions encodes the monotonic payment state machine. Refund is only
// reachable from success; expiry only from pending.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentSuccess, PaymentFailed, PaymentCancelled, PaymentExpired},
	PaymentProcessing: {PaymentSuccess, PaymentFailed, PaymentCancelled},
	PaymentSuccess:    {PaymentRefunded},
	PaymentFailed:     {},
	PaymentCancelled:  {},
	PaymentExpired:    {},
	PaymentRefunded:   {},
}

// CanTransition reports whether moving from to next is a legal state change.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition except refund bookkeeping
// is possible.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentFailed || s == PaymentCancelled || s == PaymentExpired || s == PaymentRefunded
}

type Payment struct {
	ID                uuid.UUID       `json:"id" validate:"required"`
	InternalReference string          `json:"internal_reference" validate:"required"`
	GatewayReference  string          `json:"gateway_reference,omitempty"`
	UserID            uuid.UUID       `json:"user_id" validate:"required"`
	NomineeID         uuid.UUID       `json:"nominee_id" validate:"required"`
	CategoryID        uuid.UUID       `json:"category_id" validate:"required"`
	Amount            int64           `json:"amount" validate:"required,gt=0"`
	Fees              int64           `json:"fees" validate:"gte=0"`
	NetAmount         int64           `json:"net_amount" validate:"gte=0"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	Gateway           string          `json:"gateway" validate:"required,oneof=paystack flutterwave"`
	Status            PaymentStatus   `json:"status" validate:"required"`
	RawResponse       json.RawMessage `json:"raw_response,omitempty"`
	Channel           string          `json:"channel,omitempty"`
	FraudScore        int             `json:"fraud_score" validate:"gte=0"`
	RetryCount        int             `json:"retry_count" validate:"gte=0"`
	WebhookReceived   bool            `json:"webhook_received"`
	WebhookAttempts   int             `json:"webhook_attempts" validate:"gte=0"`
	LastSignature     string          `json:"last_signature,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	RefundReason      string          `json:"refund_reason,omitempty"`
	RefundedBy        *uuid.UUID      `json:"refunded_by,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ExpiresAt         time.Time       `json:"expires_at" validate:"required"`
	Model
}

// ApplyFees sets the fee breakdown and recomputes the net amount. This is the
// explicit replacement for implicit pre-save hooks: every amount or fee
// mutation goes through here so net_amount can never go stale.
func (p *Payment) ApplyFees(fees int64) error {
	if fees < 0 {
		return fmt.Errorf("fees cannot be negative: %d", fees)
	}
	if fees > p.Amount {
		return fmt.Errorf("fees %d exceed amount %d", fees, p.Amount)
	}
	p.Fees = fees
	p.NetAmount = p.Amount - fees
	return nil
}

// IsExpired reports whether a still-pending payment is past its TTL. Expired
// payments are never promoted to votes.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentPending && now.After(p.ExpiresAt)
}

// Transition moves the payment into next, enforcing the state machine.
func (p *Payment) Transition(next PaymentStatus) error {
	if p.Status == next {
		return nil
	}
	if !p.Status.CanTransition(next) {
		return fmt.Errorf("illegal payment transition %s -> %s", p.Status, next)
	}
	p.Status = next
	return nil
}

type VoteStatus string

const (
	VoteConfirmed VoteStatus = "confirmed"
	VoteFlagged   VoteStatus = "flagged"
	VoteRefunded  VoteStatus = "refunded"
)

type VerificationMethod string

const (
	VerifiedByWebhook VerificationMethod = "webhook"
	VerifiedByPoll    VerificationMethod = "poll"
	VerifiedManually  VerificationMethod = "manual"
)

type Vote struct {
	ID                 uuid.UUID          `json:"id" validate:"required"`
	PaymentReference   string             `json:"payment_reference" validate:"required"`
	UserID             uuid.UUID          `json:"user_id" validate:"required"`
	NomineeID          uuid.UUID          `json:"nominee_id" validate:"required"`
	CategoryID         uuid.UUID          `json:"category_id" validate:"required"`
	Amount             int64              `json:"amount" validate:"required,gt=0"`
	NetAmount          int64              `json:"net_amount" validate:"gte=0"`
	Currency           string             `json:"currency" validate:"required,len=3"`
	Status             VoteStatus         `json:"status" validate:"required,oneof=confirmed flagged refunded"`
	VerificationMethod VerificationMethod `json:"verification_method" validate:"required,oneof=webhook poll manual"`
	VoterIP            string             `json:"voter_ip,omitempty"`
	UserAgent          string             `json:"user_agent,omitempty"`
	Model
}

type NomineeStats struct {
	NomineeID        uuid.UUID  `json:"nominee_id" validate:"required"`
	TotalVotes       int64      `json:"total_votes" validate:"gte=0"`
	TotalRevenue     int64      `json:"total_revenue" validate:"gte=0"`
	UniqueVoters     int64      `json:"unique_voters" validate:"gte=0"`
	AverageVoteValue int64      `json:"average_vote_value" validate:"gte=0"`
	LastVoteAt       *time.Time `json:"last_vote_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type PaymentOutbox struct {
	ID            int64           `json:"id" validate:"required"`
	EventType     string          `json:"event_type" validate:"required"`
	Payload       json.RawMessage `json:"payload" validate:"required"`
	PartitionKey  string          `json:"partition_key" validate:"required"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Status        string          `json:"status" validate:"required,oneof=pending processed failed"`
	RetryCount    int             `json:"retry_count" validate:"gte=0"`
	LastError     string          `json:"last_error,omitempty"`
	Model
}

type GatewayWebhook struct {
	ID        uuid.UUID       `json:"id" validate:"required"`
	Gateway   string          `json:"gateway" validate:"required"`
	EventID   string          `json:"event_id" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	Signature string          `json:"signature,omitempty"`
	Status    string          `json:"status" validate:"required,oneof=received processed error"`
	Model
}

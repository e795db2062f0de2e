package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// VerifyStatus is the gateway-reported charge state, normalized across
// processors.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyFailed  VerifyStatus = "failed"
	VerifyPending VerifyStatus = "pending"
)

type InitializeRequest struct {
	Reference   string
	Amount      int64 // minor currency units
	Currency    string
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResult struct {
	GatewayReference string
	CheckoutURL      string
	AccessCode       string
}

type VerifyResult struct {
	Status     VerifyStatus
	PaidAt     *time.Time
	Fees       int64 // minor currency units
	Channel    string
	IPAddress  string
	RawPayload json.RawMessage
}

// Adapter is the capability set the reconciliation engine needs from a
// payment processor. Implementations make outbound HTTP calls only; they
// never touch local state.
type Adapter interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	// Verify is an idempotent read of the charge state.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	Refund(ctx context.Context, reference string, amount int64, reason string) error
	// VerifySignature checks the signature header against the exact raw body
	// bytes in constant time.
	VerifySignature(rawBody []byte, signatureHeader string) bool
}

// Registry holds the configured adapters keyed by gateway name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment gateway: %s", name)
	}
	return a, nil
}

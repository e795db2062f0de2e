package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository is the payment side of the ledger store. Status transitions are
// conditional updates so that concurrent verify/webhook paths race safely on
// the database rather than in memory.
type Repository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	MarkSuccess(ctx context.Context, p *model.Payment) (bool, error)
	MarkFailed(ctx context.Context, reference, reason string) error
	MarkExpired(ctx context.Context, reference string) error
	MarkRefunded(ctx context.Context, id, reason, actorID string) error
	RecordWebhookReceipt(ctx context.Context, gatewayReference, signature string) error
	ListUnpromoted(ctx context.Context) ([]model.Payment, error)
	ExpireStale(ctx context.Context, limit int) (int64, error)
	EnqueueOutbox(ctx context.Context, eventType string, payload json.RawMessage, partitionKey, correlationID string) error
	SaveWebhook(ctx context.Context, gateway, eventID string, payload json.RawMessage, signature string) error
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, p *model.Payment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (
			internal_reference, gateway_reference, user_id, nominee_id, category_id,
			amount, fees, net_amount, currency, gateway, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`,
		p.InternalReference, nullIfEmpty(p.GatewayReference), p.UserID, p.NomineeID, p.CategoryID,
		p.Amount, p.Fees, p.NetAmount, p.Currency, p.Gateway, p.Status, p.ExpiresAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.DuplicateReference(p.InternalReference)
	}
	return err
}

const paymentColumns = `
	id, internal_reference, COALESCE(gateway_reference, ''), user_id, nominee_id,
	category_id, amount, fees, net_amount, currency, gateway, status,
	raw_response, COALESCE(channel, ''), fraud_score, retry_count,
	webhook_received, webhook_attempts, COALESCE(last_signature, ''),
	COALESCE(failure_reason, ''), COALESCE(refund_reason, ''), refunded_by,
	paid_at, expires_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.InternalReference, &p.GatewayReference, &p.UserID, &p.NomineeID,
		&p.CategoryID, &p.Amount, &p.Fees, &p.NetAmount, &p.Currency, &p.Gateway, &p.Status,
		&p.RawResponse, &p.Channel, &p.FraudScore, &p.RetryCount,
		&p.WebhookReceived, &p.WebhookAttempts, &p.LastSignature,
		&p.FailureReason, &p.RefundReason, &p.RefundedBy,
		&p.PaidAt, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByReference resolves a payment by internal or gateway reference.
func (r *Repo) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE internal_reference = $1 OR gateway_reference = $1
	`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.PaymentNotFound(reference)
	}
	return p, err
}

func (r *Repo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.PaymentNotFound(id)
	}
	return p, err
}

// MarkSuccess transitions the payment to success if and only if it has not
// reached a terminal state yet. Returns true when this call performed the
// transition; false means another path got there first (idempotent no-op).
func (r *Repo) MarkSuccess(ctx context.Context, p *model.Payment) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'success', fees = $2, net_amount = $3, paid_at = $4,
		    channel = $5, raw_response = $6, updated_at = NOW()
		WHERE internal_reference = $1 AND status IN ('pending', 'processing')
	`, p.InternalReference, p.Fees, p.NetAmount, p.PaidAt, p.Channel, p.RawResponse)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) MarkFailed(ctx context.Context, reference, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE internal_reference = $1 AND status IN ('pending', 'processing')
	`, reference, reason)
	return err
}

func (r *Repo) MarkExpired(ctx context.Context, reference string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = NOW()
		WHERE internal_reference = $1 AND status = 'pending'
	`, reference)
	return err
}

func (r *Repo) MarkRefunded(ctx context.Context, id, reason, actorID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'refunded', refund_reason = $2, refunded_by = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'success'
	`, id, reason, nullIfEmpty(actorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Validation("payment is not refundable")
	}
	return nil
}

// RecordWebhookReceipt updates the webhook bookkeeping on the payment without
// touching its status.
func (r *Repo) RecordWebhookReceipt(ctx context.Context, gatewayReference, signature string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments
		SET webhook_received = TRUE, webhook_attempts = webhook_attempts + 1,
		    last_signature = $2, updated_at = NOW()
		WHERE gateway_reference = $1 OR internal_reference = $1
	`, gatewayReference, signature)
	return err
}

// ListUnpromoted returns successful payments with no matching vote: the admin
// reconciliation view for interrupted promotions.
func (r *Repo) ListUnpromoted(ctx context.Context) ([]model.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.status = 'success'
		  AND NOT EXISTS (
			SELECT 1 FROM votes v WHERE v.payment_reference = p.internal_reference
		  )
		ORDER BY p.updated_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// ExpireStale marks pending payments past their TTL as expired, in bounded
// batches.
func (r *Repo) ExpireStale(ctx context.Context, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM payments
			WHERE status = 'pending' AND expires_at < NOW()
			ORDER BY expires_at
			LIMIT $1
		)
	`, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) EnqueueOutbox(ctx context.Context, eventType string, payload json.RawMessage, partitionKey, correlationID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_outbox (event_type, payload, partition_key, correlation_id, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`, eventType, payload, partitionKey, nullIfEmpty(correlationID))
	return err
}

// SaveWebhook stores the webhook receipt audit row. Duplicate event ids are
// swallowed: redelivery is expected.
func (r *Repo) SaveWebhook(ctx context.Context, gateway, eventID string, payload json.RawMessage, signature string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO gateway_webhooks (gateway, event_id, payload, signature, status)
		VALUES ($1, $2, $3, $4, 'received')
		ON CONFLICT (gateway, event_id) DO NOTHING
	`, gateway, eventID, payload, nullIfEmpty(signature))
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

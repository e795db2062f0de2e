package vote

import (
	"context"
	"errors"

	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository is the vote side of the ledger store. The unique constraint on
// payment_reference is the idempotent boundary: at most one vote per payment,
// no matter how many webhook deliveries or poll races hit Create.
type Repository interface {
	// Create inserts the vote. Returns false when a vote for the same payment
	// reference already exists; callers treat that as success.
	Create(ctx context.Context, v *model.Vote) (bool, error)
	GetByPaymentReference(ctx context.Context, paymentReference string) (*model.Vote, error)
	MarkRefunded(ctx context.Context, paymentReference string) error
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, v *model.Vote) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO votes (
			payment_reference, user_id, nominee_id, category_id,
			amount, net_amount, currency, status, verification_method,
			voter_ip, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`,
		v.PaymentReference, v.UserID, v.NomineeID, v.CategoryID,
		v.Amount, v.NetAmount, v.Currency, v.Status, v.VerificationMethod,
		nullIfEmpty(v.VoterIP), nullIfEmpty(v.UserAgent),
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) GetByPaymentReference(ctx context.Context, paymentReference string) (*model.Vote, error) {
	var v model.Vote
	err := r.db.QueryRow(ctx, `
		SELECT id, payment_reference, user_id, nominee_id, category_id,
		       amount, net_amount, currency, status, verification_method,
		       COALESCE(voter_ip, ''), COALESCE(user_agent, ''),
		       created_at, updated_at
		FROM votes
		WHERE payment_reference = $1
	`, paymentReference).Scan(
		&v.ID, &v.PaymentReference, &v.UserID, &v.NomineeID, &v.CategoryID,
		&v.Amount, &v.NetAmount, &v.Currency, &v.Status, &v.VerificationMethod,
		&v.VoterIP, &v.UserAgent,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkRefunded flips the vote status; the row is never deleted so the audit
// trail survives refunds.
func (r *Repo) MarkRefunded(ctx context.Context, paymentReference string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE votes
		SET status = 'refunded', updated_at = NOW()
		WHERE payment_reference = $1
	`, paymentReference)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verionlabs/directory-billing/internal/domain/checkout"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
)

// CheckoutRepository implements checkout.Repository using PostgreSQL.
type CheckoutRepository struct {
	pool *pgxpool.Pool
}

// NewCheckoutRepository creates a new CheckoutRepository.
func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

func (r *CheckoutRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new checkout session.
func (r *CheckoutRepository) Create(ctx context.Context, s *checkout.Session) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO checkout_sessions (id, subscription_id, status, checkout_url, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.SubscriptionID, string(s.Status), s.CheckoutURL, s.CreatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

// GetByID retrieves a checkout session by its processor-assigned ID.
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (*checkout.Session, error) {
	s := &checkout.Session{}
	var status string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, subscription_id, status, checkout_url, created_at, completed_at
		 FROM checkout_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.SubscriptionID, &status, &s.CheckoutURL, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	s.Status = checkout.Status(status)
	return s, nil
}

// Update updates an existing checkout session.
func (r *CheckoutRepository) Update(ctx context.Context, s *checkout.Session) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE checkout_sessions SET status=$1, completed_at=$2 WHERE id=$3`,
		string(s.Status), s.CompletedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSessionNotFound
	}
	return nil
}

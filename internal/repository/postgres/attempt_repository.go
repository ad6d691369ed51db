package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verionlabs/directory-billing/internal/domain/attempt"
)

// AttemptRepository implements attempt.Repository using PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Add appends one attempt record.
func (r *AttemptRepository) Add(ctx context.Context, rec *attempt.Record) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO provisioning_attempts (id, subscription_id, number, outcome, error_detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SubscriptionID, rec.Number, string(rec.Outcome), rec.ErrorDetail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListBySubscription returns the attempt history, oldest first.
func (r *AttemptRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*attempt.Record, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, subscription_id, number, outcome, error_detail, created_at
		 FROM provisioning_attempts WHERE subscription_id = $1 ORDER BY created_at ASC`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var records []*attempt.Record
	for rows.Next() {
		rec := &attempt.Record{}
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.SubscriptionID, &rec.Number, &outcome, &rec.ErrorDetail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Outcome = attempt.Outcome(outcome)
		records = append(records, rec)
	}
	return records, rows.Err()
}

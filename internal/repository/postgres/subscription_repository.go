package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

const subscriptionColumns = `id, email, organization_name, contact_name, phone, tier,
	        billing_period, amount_cents, currency, status, activated_at, period_end,
	        processor_customer_id, integration_status, integration_error,
	        integration_attempts, max_attempts, last_attempt_at, backend_org_id,
	        created_at, updated_at`

// SubscriptionRepository implements subscription.Repository using PostgreSQL.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO subscriptions
		 (id, email, organization_name, contact_name, phone, tier,
		  billing_period, amount_cents, currency, status, activated_at, period_end,
		  processor_customer_id, integration_status, integration_error,
		  integration_attempts, max_attempts, last_attempt_at, backend_org_id,
		  created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		s.ID, s.Email, s.OrganizationName, s.ContactName, s.Phone, s.Tier,
		string(s.BillingPeriod), s.AmountCents, s.Currency, string(s.Status), s.ActivatedAt, s.PeriodEnd,
		s.ProcessorCustomerID, string(s.IntegrationStatus), s.IntegrationError,
		s.IntegrationAttempts, s.MaxAttempts, s.LastAttemptAt, s.BackendOrgID,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return r.scanSubscription(r.db(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// Update updates an existing subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET
		  status=$1, activated_at=$2, period_end=$3, processor_customer_id=$4,
		  integration_status=$5, integration_error=$6, integration_attempts=$7,
		  last_attempt_at=$8, backend_org_id=$9, updated_at=$10
		 WHERE id=$11`,
		string(s.Status), s.ActivatedAt, s.PeriodEnd, s.ProcessorCustomerID,
		string(s.IntegrationStatus), s.IntegrationError, s.IntegrationAttempts,
		s.LastAttemptAt, s.BackendOrgID, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

// ListRetryable returns failed subscriptions that still have retry budget,
// oldest attempt first.
func (r *SubscriptionRepository) ListRetryable(ctx context.Context, limit int) ([]*subscription.Subscription, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE integration_status = 'failed' AND integration_attempts < max_attempts
		 ORDER BY last_attempt_at ASC NULLS FIRST
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list retryable subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		s, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Stats aggregates integration outcomes for subscriptions created after since.
func (r *SubscriptionRepository) Stats(ctx context.Context, since time.Time) (subscription.IntegrationStats, error) {
	var stats subscription.IntegrationStats
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE integration_attempts > 0),
		        COUNT(*) FILTER (WHERE integration_status = 'succeeded'),
		        COUNT(*) FILTER (WHERE integration_status = 'failed'),
		        COUNT(*) FILTER (WHERE integration_status = 'pending'),
		        COUNT(*) FILTER (WHERE integration_status = 'not_started')
		 FROM subscriptions WHERE created_at >= $1`, since,
	).Scan(&stats.Total, &stats.Attempted, &stats.Succeeded, &stats.Failed, &stats.Pending, &stats.NotStarted)
	if err != nil {
		return subscription.IntegrationStats{}, fmt.Errorf("subscription stats: %w", err)
	}
	return stats, nil
}

// scanSubscription scans a subscription from any source implementing the scanner interface.
func (r *SubscriptionRepository) scanSubscription(s scanner) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	var (
		period            string
		status            string
		integrationStatus string
	)
	err := s.Scan(
		&sub.ID, &sub.Email, &sub.OrganizationName, &sub.ContactName, &sub.Phone, &sub.Tier,
		&period, &sub.AmountCents, &sub.Currency, &status, &sub.ActivatedAt, &sub.PeriodEnd,
		&sub.ProcessorCustomerID, &integrationStatus, &sub.IntegrationError,
		&sub.IntegrationAttempts, &sub.MaxAttempts, &sub.LastAttemptAt, &sub.BackendOrgID,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.BillingPeriod = subscription.BillingPeriod(period)
	sub.Status = subscription.Status(status)
	sub.IntegrationStatus = subscription.IntegrationStatus(integrationStatus)
	return sub, nil
}

package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/backend"
	"github.com/verionlabs/directory-billing/internal/domain/attempt"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

// ProvisionSubscriptionUseCase is the worker-side execution of one
// provisioning work item: call the backend once, record the attempt, and move
// the subscription's integration state.
type ProvisionSubscriptionUseCase struct {
	subs           subscription.Repository
	attempts       attempt.Repository
	backend        backend.Client
	txManager      TransactionManager
	requestTimeout time.Duration
}

// NewProvisionSubscriptionUseCase creates a new ProvisionSubscriptionUseCase.
// requestTimeout bounds the backend call and must stay below the queue's
// redelivery timeout so a slow call cannot race its own redelivery.
func NewProvisionSubscriptionUseCase(
	subs subscription.Repository,
	attempts attempt.Repository,
	client backend.Client,
	txManager TransactionManager,
	requestTimeout time.Duration,
) *ProvisionSubscriptionUseCase {
	return &ProvisionSubscriptionUseCase{
		subs:           subs,
		attempts:       attempts,
		backend:        client,
		txManager:      txManager,
		requestTimeout: requestTimeout,
	}
}

// Execute provisions one subscription. A nil return means the work item may
// be acknowledged; an error means the item should be left for redelivery.
func (uc *ProvisionSubscriptionUseCase) Execute(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, err := uc.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	// Redelivered items for already-provisioned or abandoned subscriptions
	// are acknowledged without a backend call.
	if sub.IntegrationStatus != subscription.IntegrationPending {
		return nil
	}

	if err := sub.RecordAttempt(); err != nil {
		// Budget exhausted: park the subscription as failed and ack.
		if failErr := sub.MarkProvisioningFailed("retry budget exhausted"); failErr != nil {
			return failErr
		}
		return uc.subs.Update(ctx, sub)
	}
	if err := uc.subs.Update(ctx, sub); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.requestTimeout)
	defer cancel()

	result, callErr := uc.backend.CreateOrganization(callCtx, backend.CreateRequest{
		IdempotencyKey:      sub.IdempotencyKey(),
		SubscriptionID:      sub.ID.String(),
		OrganizationName:    sub.OrganizationName,
		ContactName:         sub.ContactName,
		ContactEmail:        sub.Email,
		ContactPhone:        sub.Phone,
		Tier:                sub.Tier,
		BillingPeriod:       string(sub.BillingPeriod),
		AmountCents:         sub.AmountCents,
		ProcessorCustomerID: stringValue(sub.ProcessorCustomerID),
	})

	if callErr == nil && result.Succeeded() {
		return uc.recordSuccess(ctx, sub, result.OrganizationID)
	}

	detail := failureDetail(result, callErr)
	permanent := (callErr != nil && !domainErrors.IsTransient(callErr)) ||
		(result != nil && result.Status == backend.StatusRejected)

	return uc.recordFailure(ctx, sub, detail, permanent)
}

// recordSuccess commits the terminal succeeded state together with the
// attempt ledger entry.
func (uc *ProvisionSubscriptionUseCase) recordSuccess(ctx context.Context, sub *subscription.Subscription, orgID string) error {
	if err := sub.MarkProvisioned(orgID); err != nil {
		return err
	}
	return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.subs.Update(txCtx, sub); err != nil {
			return err
		}
		return uc.attempts.Add(txCtx, attempt.Success(sub.ID, sub.IntegrationAttempts))
	})
}

// recordFailure commits the failed state and the ledger entry. A permanent
// rejection burns the whole remaining budget so the scheduler never retries
// data the backend has refused.
func (uc *ProvisionSubscriptionUseCase) recordFailure(ctx context.Context, sub *subscription.Subscription, detail string, permanent bool) error {
	if err := sub.MarkProvisioningFailed(detail); err != nil {
		return err
	}
	if permanent {
		sub.IntegrationAttempts = sub.MaxAttempts
	}
	return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.subs.Update(txCtx, sub); err != nil {
			return err
		}
		return uc.attempts.Add(txCtx, attempt.Failure(sub.ID, sub.IntegrationAttempts, detail))
	})
}

func failureDetail(result *backend.CreateResult, callErr error) string {
	if callErr != nil {
		return callErr.Error()
	}
	if result != nil {
		return "backend returned status " + string(result.Status)
	}
	return "backend call failed"
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package provisioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
)

// ForceRetryUseCase is the admin path for re-running provisioning on a
// subscription whose automatic budget is spent. It resets the attempt
// counter and enqueues immediately.
type ForceRetryUseCase struct {
	subs      subscription.Repository
	tasks     task.Repository
	txManager TransactionManager
}

// NewForceRetryUseCase creates a new ForceRetryUseCase.
func NewForceRetryUseCase(
	subs subscription.Repository,
	tasks task.Repository,
	txManager TransactionManager,
) *ForceRetryUseCase {
	return &ForceRetryUseCase{subs: subs, tasks: tasks, txManager: txManager}
}

// Execute re-enqueues provisioning for the subscription.
func (uc *ForceRetryUseCase) Execute(ctx context.Context, subscriptionID uuid.UUID) error {
	return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		sub, err := uc.subs.GetByID(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.IntegrationStatus == subscription.IntegrationSucceeded {
			return domainErrors.ErrAlreadyProvisioned
		}
		if sub.IntegrationStatus == subscription.IntegrationPending {
			return fmt.Errorf("%w: provisioning already in flight", domainErrors.ErrInvalidStateTransition)
		}

		// Check before touching the subscription. Flipping it to pending and
		// then bailing would leave it in flight with no task to carry it.
		open, err := uc.tasks.HasOpen(txCtx, sub.ID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: an open provisioning task already exists", domainErrors.ErrInvalidStateTransition)
		}

		sub.ResetAttempts()
		if err := sub.BeginProvisioning(); err != nil {
			return err
		}
		if err := uc.subs.Update(txCtx, sub); err != nil {
			return err
		}
		return uc.tasks.Insert(txCtx, task.New(sub.ID, sub.IntegrationAttempts))
	})
}

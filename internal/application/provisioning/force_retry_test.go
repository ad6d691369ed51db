package provisioning_test

import (
	"context"
	"errors"
	"testing"

	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/internal/testutil"
)

func newForceRetry(subs *testutil.MockSubscriptionRepository, tasks *testutil.MockTaskRepository) *provisioningApp.ForceRetryUseCase {
	return provisioningApp.NewForceRetryUseCase(subs, tasks, &testutil.MockTxManager{})
}

func TestForceRetry_ReenqueuesExhaustedSubscription(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()

	sub := failedSub(0)
	sub.IntegrationAttempts = sub.MaxAttempts
	subs.Create(ctx, sub)

	// The last automatic attempt's task already ran its course.
	prev := task.New(sub.ID, sub.MaxAttempts)
	tasks.Insert(ctx, prev)
	tasks.MarkPublished(ctx, prev.ID)
	tasks.MarkConsumed(ctx, prev.ID)

	if err := newForceRetry(subs, tasks).Execute(ctx, sub.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationPending {
		t.Errorf("expected pending, got %s", updated.IntegrationStatus)
	}
	if updated.IntegrationAttempts != 0 {
		t.Errorf("expected attempts reset to 0, got %d", updated.IntegrationAttempts)
	}

	var fresh int
	for _, e := range tasks.TasksFor(sub.ID) {
		if e.Status == task.StatusPending {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected one fresh pending task, got %d", fresh)
	}
}

func TestForceRetry_OpenTaskLeavesSubscriptionUntouched(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()

	sub := failedSub(2)
	subs.Create(ctx, sub)
	tasks.Insert(ctx, task.New(sub.ID, 2))

	err := newForceRetry(subs, tasks).Execute(ctx, sub.ID)
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}

	// The subscription must stay failed. Flipping it to pending without
	// writing a task would strand it with nothing to carry the retry.
	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationFailed {
		t.Errorf("expected failed, got %s", updated.IntegrationStatus)
	}
	if updated.IntegrationAttempts != 2 {
		t.Errorf("expected attempts unchanged, got %d", updated.IntegrationAttempts)
	}
	if got := len(tasks.TasksFor(sub.ID)); got != 1 {
		t.Errorf("expected the existing task only, got %d", got)
	}
}

func TestForceRetry_AlreadyProvisioned(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()

	sub := failedSub(1)
	sub.IntegrationStatus = subscription.IntegrationSucceeded
	subs.Create(ctx, sub)

	err := newForceRetry(subs, tasks).Execute(ctx, sub.ID)
	if !errors.Is(err, domainErrors.ErrAlreadyProvisioned) {
		t.Fatalf("expected already provisioned, got %v", err)
	}
	if len(tasks.TasksFor(sub.ID)) != 0 {
		t.Error("no task must be written for a provisioned subscription")
	}
}

func TestForceRetry_InFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()

	sub := failedSub(1)
	sub.IntegrationStatus = subscription.IntegrationPending
	subs.Create(ctx, sub)

	err := newForceRetry(subs, tasks).Execute(ctx, sub.ID)
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
}

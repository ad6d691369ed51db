package provisioning_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/internal/testutil"
)

func newScheduler(subs *testutil.MockSubscriptionRepository, tasks *testutil.MockTaskRepository, lock *testutil.MockSweepLock) *provisioningApp.RetryScheduler {
	cfg := provisioningApp.RetrySchedulerConfig{
		BackoffBase: time.Minute,
		BackoffMax:  time.Hour,
		BatchSize:   50,
	}
	return provisioningApp.NewRetryScheduler(
		subs, tasks, &testutil.MockTxManager{}, lock, cfg, zerolog.Nop())
}

func failedSub(attempts int) *subscription.Subscription {
	sub := testutil.NewTestSubscription("standard", subscription.PeriodMonthly)
	sub.Status = subscription.StatusActive
	sub.IntegrationStatus = subscription.IntegrationFailed
	sub.IntegrationAttempts = attempts
	return sub
}

func TestSweep_ReenqueuesFailedSubscription(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	lock := &testutil.MockSweepLock{}

	sub := failedSub(2)
	subs.Create(ctx, sub)

	before := time.Now()
	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 re-enqueued, got %d", n)
	}

	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationPending {
		t.Errorf("expected pending, got %s", updated.IntegrationStatus)
	}

	entries := tasks.TasksFor(sub.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one task, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Status != task.StatusPending {
		t.Errorf("expected pending task, got %s", entry.Status)
	}
	// Two prior attempts give a 4x base delay.
	wantDue := before.Add(4 * time.Minute)
	if entry.NotBefore.Before(wantDue) {
		t.Errorf("expected NotBefore at or after %v, got %v", wantDue, entry.NotBefore)
	}
}

func TestSweep_LockDeniedIsNoOp(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	lock := &testutil.MockSweepLock{Denied: true}

	sub := failedSub(1)
	subs.Create(ctx, sub)

	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no work, got %d", n)
	}
	if len(tasks.TasksFor(sub.ID)) != 0 {
		t.Error("no task must be written when the lock is held elsewhere")
	}

	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationFailed {
		t.Errorf("subscription must stay failed, got %s", updated.IntegrationStatus)
	}
}

func TestSweep_OpenTaskPreventsDuplicate(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	lock := &testutil.MockSweepLock{}

	sub := failedSub(1)
	subs.Create(ctx, sub)
	tasks.Insert(ctx, task.New(sub.ID, 1))

	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("a skipped subscription must not count as re-enqueued, got %d", n)
	}

	if got := len(tasks.TasksFor(sub.ID)); got != 1 {
		t.Errorf("expected the existing task only, got %d", got)
	}
	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationFailed {
		t.Errorf("state must not move while a task is open, got %s", updated.IntegrationStatus)
	}
}

func TestSweep_ExhaustedBudgetIsSkipped(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	lock := &testutil.MockSweepLock{}

	sub := failedSub(0)
	sub.IntegrationAttempts = sub.MaxAttempts
	subs.Create(ctx, sub)

	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("an exhausted subscription must not count as re-enqueued, got %d", n)
	}
	if len(tasks.TasksFor(sub.ID)) != 0 {
		t.Error("exhausted subscriptions must not be re-enqueued")
	}
}

func TestSweep_ConsumedTaskDoesNotBlockRetry(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	lock := &testutil.MockSweepLock{}

	sub := failedSub(3)
	subs.Create(ctx, sub)

	// The previous attempt's task went through the full dispatch lifecycle:
	// inserted, published to the stream, consumed by the worker.
	prev := task.New(sub.ID, 3)
	tasks.Insert(ctx, prev)
	tasks.MarkPublished(ctx, prev.ID)
	tasks.MarkConsumed(ctx, prev.ID)

	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 re-enqueued, got %d", n)
	}

	var fresh int
	for _, e := range tasks.TasksFor(sub.ID) {
		if e.Status == task.StatusPending {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("expected one fresh pending task, got %d", fresh)
	}
	updated, _ := subs.GetByID(ctx, sub.ID)
	if updated.IntegrationStatus != subscription.IntegrationPending {
		t.Errorf("expected pending, got %s", updated.IntegrationStatus)
	}
}

func TestSweep_StalePublishedTaskAgesOut(t *testing.T) {
	ctx := context.Background()
	subs := testutil.NewMockSubscriptionRepository()
	tasks := testutil.NewMockTaskRepository()
	tasks.OpenWindow = 15 * time.Minute
	lock := &testutil.MockSweepLock{}

	sub := failedSub(2)
	subs.Create(ctx, sub)

	// A published row whose acknowledgement was lost. Once it falls out of
	// the open-item window the scheduler may re-enqueue.
	prev := task.New(sub.ID, 2)
	tasks.Insert(ctx, prev)
	tasks.MarkPublished(ctx, prev.ID)
	old := time.Now().Add(-time.Hour)
	prev.PublishedAt = &old

	n, err := newScheduler(subs, tasks, lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 re-enqueued, got %d", n)
	}
}

func TestSweep_ReleasesLock(t *testing.T) {
	ctx := context.Background()
	lock := &testutil.MockSweepLock{}

	_, err := newScheduler(testutil.NewMockSubscriptionRepository(), testutil.NewMockTaskRepository(), lock).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lock.Releases != 1 {
		t.Errorf("expected one release, got %d", lock.Releases)
	}
}

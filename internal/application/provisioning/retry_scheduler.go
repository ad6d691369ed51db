package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/pkg/retry"
)

// SweepLock guards a scheduler sweep so only one worker instance runs it.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RetrySchedulerConfig tunes the backoff curve and sweep size.
type RetrySchedulerConfig struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
	BatchSize   int
}

// RetryScheduler re-enqueues failed subscriptions that still have retry
// budget. Each sweep runs under a distributed lock; each subscription moves
// back to pending and gets a delayed task whose due time follows the
// exponential backoff curve.
type RetryScheduler struct {
	subs      subscription.Repository
	tasks     task.Repository
	txManager TransactionManager
	lock      SweepLock
	cfg       RetrySchedulerConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRetryScheduler creates a new RetryScheduler.
func NewRetryScheduler(
	subs subscription.Repository,
	tasks task.Repository,
	txManager TransactionManager,
	lock SweepLock,
	cfg RetrySchedulerConfig,
	logger zerolog.Logger,
) *RetryScheduler {
	return &RetryScheduler{
		subs:      subs,
		tasks:     tasks,
		txManager: txManager,
		lock:      lock,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep enqueues all retryable subscriptions once. Returns the number of
// subscriptions re-enqueued.
func (s *RetryScheduler) Sweep(ctx context.Context) (int, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}
	defer s.lock.Release(ctx)

	subs, err := s.subs.ListRetryable(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list retryable: %w", err)
	}

	enqueued := 0
	for _, sub := range subs {
		ok, err := s.enqueueRetry(ctx, sub)
		if err != nil {
			s.logger.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Msg("Failed to enqueue retry")
			continue
		}
		if ok {
			enqueued++
		}
	}
	return enqueued, nil
}

// enqueueRetry moves one subscription back to pending and writes its delayed
// task in the same transaction. Reports whether a task was actually written;
// subscriptions skipped for an open task or a spent budget do not count.
func (s *RetryScheduler) enqueueRetry(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	if !sub.CanRetryProvisioning() {
		return false, nil
	}

	written := false
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		open, err := s.tasks.HasOpen(txCtx, sub.ID)
		if err != nil {
			return err
		}
		if open {
			return nil
		}

		if err := sub.BeginProvisioning(); err != nil {
			return err
		}
		if err := s.subs.Update(txCtx, sub); err != nil {
			return err
		}

		delay := retry.Backoff(s.cfg.BackoffBase, s.cfg.BackoffMax, sub.IntegrationAttempts)
		entry := task.NewDelayed(sub.ID, sub.IntegrationAttempts, s.now().Add(delay))
		if err := s.tasks.Insert(txCtx, entry); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

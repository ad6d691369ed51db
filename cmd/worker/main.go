package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	"github.com/verionlabs/directory-billing/internal/backend"
	"github.com/verionlabs/directory-billing/internal/bootstrap"
	"github.com/verionlabs/directory-billing/internal/domain/event"
	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/internal/infrastructure/observability"
	infraRedis "github.com/verionlabs/directory-billing/internal/infrastructure/redis"
	"github.com/verionlabs/directory-billing/internal/repository/postgres"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "billing-worker", "billing_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	subscriptionRepo := postgres.NewSubscriptionRepository(app.Pool)
	taskRepo := postgres.NewTaskRepository(app.Pool)
	attemptRepo := postgres.NewAttemptRepository(app.Pool)
	eventLedger := postgres.NewEventLedger(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Backend client, wrapped in a circuit breaker ---
	backendClient := backend.NewBreakerClient(
		backend.NewHTTPClient(app.Config.Backend.URL, app.Config.Backend.APIKey, app.Config.Backend.RequestTimeout),
		app.Config.Backend.BreakerThreshold,
		app.Config.Backend.BreakerTimeout,
	)

	// --- Use cases ---
	provisionUC := provisioningApp.NewProvisionSubscriptionUseCase(
		subscriptionRepo, attemptRepo, backendClient, txManager, app.Config.Backend.RequestTimeout)

	sweepLock := infraRedis.NewDistributedLock(app.Redis, "provisioning:retry-sweep", app.Config.Retry.LockTTL)
	scheduler := provisioningApp.NewRetryScheduler(
		subscriptionRepo, taskRepo, txManager, sweepLock,
		provisioningApp.RetrySchedulerConfig{
			BackoffBase: app.Config.Retry.BaseDelay,
			BackoffMax:  app.Config.Retry.MaxDelay,
			BatchSize:   app.Config.Retry.BatchSize,
		},
		app.Logger,
	)

	monitor := provisioningApp.NewHealthMonitor(
		subscriptionRepo, app.Metrics,
		app.Config.Monitor.Window, app.Config.Monitor.FailureThreshold,
		app.Logger,
	)

	// --- Stream plumbing ---
	producer := infraRedis.NewQueueProducer(app.Redis)
	queueCfg := app.Config.Queue

	app.Logger.Info().
		Str("stream", infraRedis.ProvisioningStream).
		Str("group", queueCfg.ConsumerGroup).
		Int("consumers", queueCfg.Consumers).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Task dispatcher: durable task rows -> stream.
	g.Go(func() error {
		return runDispatcher(gCtx, app, txManager, taskRepo, producer)
	})

	// 2. N stream consumers executing provisioning.
	for i := 0; i < queueCfg.Consumers; i++ {
		consumerName := fmt.Sprintf("%s-%d", app.Config.InstanceID, i)
		consumer := infraRedis.NewQueueConsumer(
			app.Redis, infraRedis.ProvisioningStream, queueCfg.ConsumerGroup, consumerName,
			queueCfg.BatchSize, queueCfg.BlockDuration,
		)
		if err := consumer.CreateGroup(gCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
		}
		g.Go(func() error {
			return runConsumer(gCtx, app, consumer, provisionUC, taskRepo)
		})
	}

	// 3. Reclaimer: redelivers work abandoned past the visibility timeout.
	reclaimConsumer := infraRedis.NewQueueConsumer(
		app.Redis, infraRedis.ProvisioningStream, queueCfg.ConsumerGroup, app.Config.InstanceID+"-reclaimer",
		queueCfg.BatchSize, queueCfg.BlockDuration,
	)
	g.Go(func() error {
		return runReclaimer(gCtx, app, reclaimConsumer, provisionUC, taskRepo)
	})

	// 4. Retry scheduler sweep.
	g.Go(func() error {
		return runRetryScheduler(gCtx, app.Logger, scheduler, app.Config.Retry.Interval, app)
	})

	// 5. Health monitor.
	g.Go(func() error {
		return runHealthMonitor(gCtx, monitor, app.Config.Monitor.Interval)
	})

	// 6. Processed-event sweep keeps dedup storage bounded.
	g.Go(func() error {
		return runLedgerSweep(gCtx, app.Logger, eventLedger, app.Config.Webhook.EventRetention)
	})

	// 7. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// taskPublisher is the stream-side port the dispatcher publishes through.
type taskPublisher interface {
	Publish(ctx context.Context, taskID, subscriptionID string, attempt int) error
}

type transactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// runDispatcher polls the durable task table and publishes due rows to the
// stream. Rows are locked by the enclosing transaction so concurrent
// dispatchers never double-publish.
func runDispatcher(
	ctx context.Context,
	app *bootstrap.App,
	txManager *postgres.TxManager,
	taskRepo task.Repository,
	producer *infraRedis.QueueProducer,
) error {
	ticker := time.NewTicker(app.Config.Queue.DispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := dispatchDue(ctx, app.Logger, app.Metrics, txManager, taskRepo, producer, int(app.Config.Queue.BatchSize))
		if err != nil {
			app.Logger.Error().Err(err).Msg("Dispatcher error")
		}
	}
}

// dispatchDue publishes one batch of due task rows inside a single
// transaction. A failed row mark aborts the batch so no row is ever left
// published on the stream but unmarked in the table past this transaction.
func dispatchDue(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	txManager transactionManager,
	taskRepo task.Repository,
	producer taskPublisher,
	batchSize int,
) error {
	return txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := taskRepo.GetPublishable(txCtx, batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := producer.Publish(ctx, entry.ID.String(), entry.SubscriptionID.String(), entry.Attempt); err != nil {
				logger.Error().Err(err).Str("task_id", entry.ID.String()).Msg("Failed to publish task")
				if err := taskRepo.MarkPublishFailed(txCtx, entry.ID); err != nil {
					return err
				}
				metrics.TasksDispatched.WithLabelValues("error").Inc()
				continue
			}
			if err := taskRepo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			metrics.TasksDispatched.WithLabelValues("success").Inc()
		}
		return nil
	})
}

func runConsumer(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.QueueConsumer,
	provisionUC *provisioningApp.ProvisionSubscriptionUseCase,
	taskRepo task.Repository,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			app.Logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, msg := range msgs {
			handleMessage(ctx, app, consumer, provisionUC, taskRepo, msg)
		}
	}
}

// handleMessage runs one provisioning execution, acknowledges the delivery
// whenever an outcome was durably recorded, and closes the backing task row.
// Only load or persist errors leave the delivery unacked for redelivery
// after the visibility timeout; retries of recorded failures belong to the
// retry scheduler.
func handleMessage(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.QueueConsumer,
	provisionUC *provisioningApp.ProvisionSubscriptionUseCase,
	taskRepo task.Repository,
	msg infraRedis.Message,
) {
	logger := app.Logger.With().
		Str("subscription_id", msg.SubscriptionID).
		Int("attempt", msg.Attempt).
		Logger()

	subID, err := uuid.Parse(msg.SubscriptionID)
	if err != nil {
		logger.Error().Str("raw", msg.SubscriptionID).Msg("Invalid subscription ID in stream message")
		consumer.Ack(ctx, msg.ID)
		closeTask(ctx, logger, taskRepo, msg.TaskID)
		return
	}

	start := time.Now()
	err = provisionUC.Execute(ctx, subID)
	duration := time.Since(start).Seconds()

	if err != nil {
		logger.Error().Err(err).Msg("Provisioning execution failed, leaving for redelivery")
		app.Metrics.ProvisioningTotal.WithLabelValues("error").Inc()
		app.Metrics.ProvisioningDuration.WithLabelValues("error").Observe(duration)
		return
	}

	app.Metrics.ProvisioningTotal.WithLabelValues("handled").Inc()
	app.Metrics.ProvisioningDuration.WithLabelValues("handled").Observe(duration)
	consumer.Ack(ctx, msg.ID)
	closeTask(ctx, logger, taskRepo, msg.TaskID)
}

// closeTask marks the handled delivery's task row consumed so it stops
// counting as an open item for its subscription. Failures here are logged
// only; the row ages out of the open-item window on its own.
func closeTask(ctx context.Context, logger zerolog.Logger, taskRepo task.Repository, rawTaskID string) {
	taskID, err := uuid.Parse(rawTaskID)
	if err != nil {
		logger.Error().Str("raw", rawTaskID).Msg("Invalid task ID in stream message")
		return
	}
	if err := taskRepo.MarkConsumed(ctx, taskID); err != nil {
		logger.Error().Err(err).Str("task_id", rawTaskID).Msg("Failed to mark task consumed")
	}
}

// runReclaimer periodically claims deliveries idle past the visibility
// timeout and re-executes them.
func runReclaimer(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.QueueConsumer,
	provisionUC *provisioningApp.ProvisionSubscriptionUseCase,
	taskRepo task.Repository,
) error {
	ticker := time.NewTicker(app.Config.Queue.ReclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		msgs, err := consumer.Reclaim(ctx, app.Config.Queue.VisibilityTimeout)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Reclaim failed")
			continue
		}
		for _, msg := range msgs {
			app.Metrics.TasksReclaimed.Inc()
			handleMessage(ctx, app, consumer, provisionUC, taskRepo, msg)
		}
	}
}

func runRetryScheduler(
	ctx context.Context,
	logger zerolog.Logger,
	scheduler *provisioningApp.RetryScheduler,
	interval time.Duration,
	app *bootstrap.App,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		enqueued, err := scheduler.Sweep(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Retry sweep failed")
			continue
		}
		if enqueued > 0 {
			app.Metrics.ProvisioningRetries.Add(float64(enqueued))
			app.Metrics.TasksEnqueued.WithLabelValues("retry").Add(float64(enqueued))
			logger.Info().Int("enqueued", enqueued).Msg("Retry sweep re-enqueued subscriptions")
		}
	}
}

func runHealthMonitor(ctx context.Context, monitor *provisioningApp.HealthMonitor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		monitor.Check(ctx)
	}
}

func runLedgerSweep(ctx context.Context, logger zerolog.Logger, ledger event.Ledger, retention time.Duration) error {
	// One sweep a day is plenty for a 30-day retention window.
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		deleted, err := ledger.Sweep(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.Error().Err(err).Msg("Processed-event sweep failed")
			continue
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Swept processed events")
		}
	}
}

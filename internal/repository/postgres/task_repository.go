package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verionlabs/directory-billing/internal/domain/task"
)

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert writes a new task entry, usually inside the caller's transaction.
func (r *TaskRepository) Insert(ctx context.Context, e *task.Entry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO provisioning_tasks
		 (id, subscription_id, attempt, status, not_before, publish_tries, max_tries, created_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SubscriptionID, e.Attempt, string(e.Status), e.NotBefore,
		e.PublishTries, e.MaxTries, e.CreatedAt, e.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetPublishable returns due pending entries locked for the calling
// transaction, so concurrent dispatchers never publish the same row twice.
func (r *TaskRepository) GetPublishable(ctx context.Context, limit int) ([]*task.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, subscription_id, attempt, status, not_before, publish_tries, max_tries, created_at, published_at
		 FROM provisioning_tasks
		 WHERE status = 'pending' AND not_before <= NOW()
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get publishable tasks: %w", err)
	}
	defer rows.Close()

	var entries []*task.Entry
	for rows.Next() {
		e := &task.Entry{}
		var status string
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.Attempt, &status, &e.NotBefore,
			&e.PublishTries, &e.MaxTries, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		e.Status = task.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps the entry as handed to the stream.
func (r *TaskRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE provisioning_tasks SET status = 'published', published_at = $1 WHERE id = $2`, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark task published: %w", err)
	}
	return nil
}

// MarkPublishFailed bumps the publish counter and fails the row once its
// publish budget is exhausted.
func (r *TaskRepository) MarkPublishFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE provisioning_tasks SET publish_tries = publish_tries + 1,
		        status = CASE WHEN publish_tries + 1 >= max_tries THEN 'failed' ELSE 'pending' END
		 WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("mark task publish failed: %w", err)
	}
	return nil
}

// MarkConsumed closes a published entry after the worker has recorded its
// outcome. A no-op for rows that never reached the published state.
func (r *TaskRepository) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE provisioning_tasks SET status = 'consumed' WHERE id = $1 AND status = 'published'`, id,
	)
	if err != nil {
		return fmt.Errorf("mark task consumed: %w", err)
	}
	return nil
}

// HasOpen reports whether a pending or recently published entry exists for
// the subscription. Published rows older than the window are treated as
// abandoned so the retry scheduler is never wedged by a lost acknowledgement.
func (r *TaskRepository) HasOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM provisioning_tasks
		   WHERE subscription_id = $1
		     AND (status = 'pending'
		          OR (status = 'published' AND published_at > NOW() - INTERVAL '15 minutes'))
		 )`, subscriptionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open task: %w", err)
	}
	return exists, nil
}

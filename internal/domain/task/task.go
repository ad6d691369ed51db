package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status tracks a task row through the durable queue table.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusConsumed  Status = "consumed"
	StatusFailed    Status = "failed"
)

// Entry is one durable provisioning work item. Rows are written in the same
// transaction as the state change that requires them and published to the
// stream by the dispatcher, so a task is never visible without its durably
// committed cause.
type Entry struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Attempt        int
	Status         Status
	// NotBefore delays publication; the retry scheduler uses it for backoff.
	NotBefore    time.Time
	PublishTries int
	MaxTries     int
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// New creates a task entry eligible for immediate publication.
func New(subscriptionID uuid.UUID, attempt int) *Entry {
	now := time.Now()
	return &Entry{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Attempt:        attempt,
		Status:         StatusPending,
		NotBefore:      now,
		MaxTries:       5,
		CreatedAt:      now,
	}
}

// NewDelayed creates a task entry that becomes publishable at notBefore.
func NewDelayed(subscriptionID uuid.UUID, attempt int, notBefore time.Time) *Entry {
	e := New(subscriptionID, attempt)
	e.NotBefore = notBefore
	return e
}

// Repository is the persistence port for the durable task table.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error

	// GetPublishable returns pending entries whose NotBefore has passed,
	// locked for the calling transaction (skip-locked semantics).
	GetPublishable(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkPublishFailed bumps the publish counter and fails the row once its
	// publish budget is exhausted.
	MarkPublishFailed(ctx context.Context, id uuid.UUID) error

	// MarkConsumed closes a published entry once the worker has recorded
	// its outcome and acknowledged the delivery.
	MarkConsumed(ctx context.Context, id uuid.UUID) error

	// HasOpen reports whether an unpublished or recently published entry
	// exists for the subscription, to keep one outstanding item per
	// subscription. Consumed and failed entries do not count.
	HasOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
}

package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IntegrationStats aggregates provisioning outcomes for the health monitor.
// Attempted counts subscriptions with at least one provisioning attempt.
type IntegrationStats struct {
	Total      int64
	Attempted  int64
	Succeeded  int64
	Failed     int64
	Pending    int64
	NotStarted int64
}

// FailureRate returns failed / attempted, or 0 when nothing was attempted.
func (s IntegrationStats) FailureRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Attempted)
}

// Repository is the persistence port for subscriptions.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error

	// ListRetryable returns subscriptions with integration status failed and
	// attempts below their cap, for the retry scheduler.
	ListRetryable(ctx context.Context, limit int) ([]*Subscription, error)

	// Stats aggregates integration outcomes for subscriptions created after since.
	Stats(ctx context.Context, since time.Time) (IntegrationStats, error)
}

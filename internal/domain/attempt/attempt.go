package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome of a single provisioning execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record is one immutable ledger entry per worker execution. It is the audit
// trail behind the health monitor's failure-rate computation and the admin
// surface.
type Record struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Number         int
	Outcome        Outcome
	ErrorDetail    *string
	CreatedAt      time.Time
}

// Success builds a success record for the given attempt number.
func Success(subscriptionID uuid.UUID, number int) *Record {
	return &Record{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Number:         number,
		Outcome:        OutcomeSuccess,
		CreatedAt:      time.Now(),
	}
}

// Failure builds a failure record carrying the error detail.
func Failure(subscriptionID uuid.UUID, number int, detail string) *Record {
	return &Record{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Number:         number,
		Outcome:        OutcomeFailure,
		ErrorDetail:    &detail,
		CreatedAt:      time.Now(),
	}
}

// Repository is the persistence port for the attempt ledger. Records are
// append-only.
type Repository interface {
	Add(ctx context.Context, r *Record) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Record, error)
}

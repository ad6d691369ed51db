package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/domain/errors"
)

// Status represents the checkout session state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Session represents one processor-hosted checkout attempt. Sessions are
// mutated only by the webhook receiver on terminal processor events and are
// never deleted (kept for audit and idempotency).
type Session struct {
	ID             string // processor-assigned session identifier
	SubscriptionID uuid.UUID
	Status         Status
	CheckoutURL    string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// NewSession records a freshly created processor checkout session.
func NewSession(processorSessionID string, subscriptionID uuid.UUID, checkoutURL string) (*Session, error) {
	if processorSessionID == "" {
		return nil, errors.NewValidationError("session_id", "cannot be empty")
	}
	return &Session{
		ID:             processorSessionID,
		SubscriptionID: subscriptionID,
		Status:         StatusPending,
		CheckoutURL:    checkoutURL,
		CreatedAt:      time.Now(),
	}, nil
}

// IsTerminal reports whether the session reached a final state.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired
}

// Complete transitions pending -> completed. Terminal states never move again.
func (s *Session) Complete(at time.Time) error {
	if s.Status != StatusPending {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot complete session in state "+string(s.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	s.Status = StatusCompleted
	s.CompletedAt = &at
	return nil
}

// Expire transitions pending -> expired. Terminal states never move again.
func (s *Session) Expire() error {
	if s.Status != StatusPending {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot expire session in state "+string(s.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	s.Status = StatusExpired
	return nil
}

// Repository is the persistence port for checkout sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
}

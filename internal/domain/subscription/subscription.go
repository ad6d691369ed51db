package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/domain/errors"
)

// BillingPeriod represents the billing cadence of a subscription
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)

// Status represents the subscription lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IntegrationStatus represents the backend provisioning state machine
type IntegrationStatus string

const (
	IntegrationNotStarted IntegrationStatus = "not_started"
	IntegrationPending    IntegrationStatus = "pending"
	IntegrationSucceeded  IntegrationStatus = "succeeded"
	IntegrationFailed     IntegrationStatus = "failed"
)

// DefaultMaxAttempts caps automatic provisioning retries per subscription.
const DefaultMaxAttempts = 5

// Subscription is the business entity a payment pays for. Provisioning state
// (IntegrationStatus and friends) is mutated only by the provisioning worker
// and the retry scheduler.
type Subscription struct {
	ID                  uuid.UUID
	Email               string
	OrganizationName    string
	ContactName         string
	Phone               string
	Tier                string
	BillingPeriod       BillingPeriod
	AmountCents         int64
	Currency            string
	Status              Status
	ActivatedAt         *time.Time
	PeriodEnd           *time.Time
	ProcessorCustomerID *string

	IntegrationStatus   IntegrationStatus
	IntegrationError    *string
	IntegrationAttempts int
	MaxAttempts         int
	LastAttemptAt       *time.Time
	BackendOrgID        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a pending subscription at checkout initiation.
func New(email, organizationName, contactName, phone, tier string, period BillingPeriod, amountCents int64, currency string) (*Subscription, error) {
	if email == "" {
		return nil, errors.NewValidationError("email", "cannot be empty")
	}
	if organizationName == "" {
		return nil, errors.NewValidationError("organization_name", "cannot be empty")
	}
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if period != PeriodMonthly && period != PeriodAnnual {
		return nil, errors.NewValidationError("billing_period", "must be monthly or annual")
	}

	now := time.Now()
	return &Subscription{
		ID:                uuid.New(),
		Email:             email,
		OrganizationName:  organizationName,
		ContactName:       contactName,
		Phone:             phone,
		Tier:              tier,
		BillingPeriod:     period,
		AmountCents:       amountCents,
		Currency:          currency,
		Status:            StatusPending,
		IntegrationStatus: IntegrationNotStarted,
		MaxAttempts:       DefaultMaxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// integrationTransitions is the closed set of allowed provisioning-state moves.
// succeeded is terminal; failed may go back to pending through a retry.
var integrationTransitions = map[IntegrationStatus][]IntegrationStatus{
	IntegrationNotStarted: {IntegrationPending},
	IntegrationPending:    {IntegrationSucceeded, IntegrationFailed},
	IntegrationFailed:     {IntegrationPending},
	IntegrationSucceeded:  {},
}

// CanTransitionIntegration checks whether the provisioning state may move to next.
func (s *Subscription) CanTransitionIntegration(next IntegrationStatus) bool {
	for _, allowed := range integrationTransitions[s.IntegrationStatus] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *Subscription) transitionIntegration(next IntegrationStatus) error {
	if !s.CanTransitionIntegration(next) {
		return errors.NewDomainError(
			"invalid_integration_transition",
			"cannot transition integration from "+string(s.IntegrationStatus)+" to "+string(next),
			errors.ErrInvalidStateTransition,
		)
	}
	s.IntegrationStatus = next
	s.UpdatedAt = time.Now()
	return nil
}

// BeginProvisioning moves the subscription into the pending provisioning state.
// Valid from not_started (first enqueue) and from failed (retry).
func (s *Subscription) BeginProvisioning() error {
	if s.IntegrationStatus == IntegrationSucceeded {
		return errors.ErrAlreadyProvisioned
	}
	return s.transitionIntegration(IntegrationPending)
}

// MarkProvisioned records a durable provisioning success.
func (s *Subscription) MarkProvisioned(backendOrgID string) error {
	if err := s.transitionIntegration(IntegrationSucceeded); err != nil {
		return err
	}
	s.BackendOrgID = &backendOrgID
	s.IntegrationError = nil
	return nil
}

// MarkProvisioningFailed records a provisioning failure.
func (s *Subscription) MarkProvisioningFailed(reason string) error {
	if err := s.transitionIntegration(IntegrationFailed); err != nil {
		return err
	}
	s.IntegrationError = &reason
	return nil
}

// RecordAttempt increments the attempt counter, capped at MaxAttempts.
func (s *Subscription) RecordAttempt() error {
	if s.IntegrationAttempts >= s.MaxAttempts {
		return errors.ErrMaxAttemptsExceeded
	}
	s.IntegrationAttempts++
	now := time.Now()
	s.LastAttemptAt = &now
	s.UpdatedAt = now
	return nil
}

// CanRetryProvisioning reports whether the scheduler may re-enqueue this subscription.
func (s *Subscription) CanRetryProvisioning() bool {
	return s.IntegrationStatus == IntegrationFailed && s.IntegrationAttempts < s.MaxAttempts
}

// ResetAttempts restarts the retry budget for an administrative retry.
func (s *Subscription) ResetAttempts() {
	s.IntegrationAttempts = 0
	s.IntegrationError = nil
	s.UpdatedAt = time.Now()
}

// Activate marks the subscription paid and computes the period end from the
// billing cadence.
func (s *Subscription) Activate(at time.Time) error {
	if s.Status != StatusPending {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot activate subscription in state "+string(s.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	s.Status = StatusActive
	s.ActivatedAt = &at

	var end time.Time
	if s.BillingPeriod == PeriodAnnual {
		end = at.AddDate(1, 0, 0)
	} else {
		end = at.AddDate(0, 1, 0)
	}
	s.PeriodEnd = &end
	s.UpdatedAt = time.Now()
	return nil
}

// Expire marks the subscription's checkout as abandoned.
func (s *Subscription) Expire() error {
	if s.Status != StatusPending {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot expire subscription in state "+string(s.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	s.Status = StatusExpired
	s.UpdatedAt = time.Now()
	return nil
}

// IdempotencyKey derives the deterministic key sent on every backend call, so
// redelivered or concurrently processed work items cannot create a second
// organization.
func (s *Subscription) IdempotencyKey() string {
	return "sub-" + s.ID.String()
}

package subscription_test

import (
	"errors"
	"testing"
	"time"

	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

func newPending(t *testing.T) *subscription.Subscription {
	t.Helper()
	s, err := subscription.New(
		"pastor@gracechapel.org", "Grace Chapel", "Sam Whitfield", "+1-555-0142",
		"standard", subscription.PeriodMonthly, 2900, "USD",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		org    string
		amount int64
		period subscription.BillingPeriod
	}{
		{"empty email", "", "Grace Chapel", 2900, subscription.PeriodMonthly},
		{"empty organization", "a@b.org", "", 2900, subscription.PeriodMonthly},
		{"zero amount", "a@b.org", "Grace Chapel", 0, subscription.PeriodMonthly},
		{"negative amount", "a@b.org", "Grace Chapel", -100, subscription.PeriodMonthly},
		{"bad period", "a@b.org", "Grace Chapel", 2900, subscription.BillingPeriod("weekly")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := subscription.New(tt.email, tt.org, "x", "", "basic", tt.period, tt.amount, "USD")
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestIntegrationTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    subscription.IntegrationStatus
		to      subscription.IntegrationStatus
		allowed bool
	}{
		{"not_started to pending", subscription.IntegrationNotStarted, subscription.IntegrationPending, true},
		{"pending to succeeded", subscription.IntegrationPending, subscription.IntegrationSucceeded, true},
		{"pending to failed", subscription.IntegrationPending, subscription.IntegrationFailed, true},
		{"failed to pending", subscription.IntegrationFailed, subscription.IntegrationPending, true},
		{"succeeded is terminal", subscription.IntegrationSucceeded, subscription.IntegrationPending, false},
		{"succeeded never fails", subscription.IntegrationSucceeded, subscription.IntegrationFailed, false},
		{"not_started cannot succeed directly", subscription.IntegrationNotStarted, subscription.IntegrationSucceeded, false},
		{"failed cannot succeed directly", subscription.IntegrationFailed, subscription.IntegrationSucceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPending(t)
			s.IntegrationStatus = tt.from
			if got := s.CanTransitionIntegration(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionIntegration(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestBeginProvisioning_AlreadyProvisioned(t *testing.T) {
	s := newPending(t)
	s.IntegrationStatus = subscription.IntegrationSucceeded

	err := s.BeginProvisioning()
	if !errors.Is(err, domainErrors.ErrAlreadyProvisioned) {
		t.Fatalf("expected ErrAlreadyProvisioned, got %v", err)
	}
}

func TestMarkProvisioned_ClearsError(t *testing.T) {
	s := newPending(t)
	s.IntegrationStatus = subscription.IntegrationPending
	reason := "backend unreachable"
	s.IntegrationError = &reason

	if err := s.MarkProvisioned("org-42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.IntegrationStatus != subscription.IntegrationSucceeded {
		t.Errorf("expected succeeded, got %s", s.IntegrationStatus)
	}
	if s.BackendOrgID == nil || *s.BackendOrgID != "org-42" {
		t.Error("expected backend org ID to be recorded")
	}
	if s.IntegrationError != nil {
		t.Error("expected integration error cleared")
	}
}

func TestRecordAttempt_CapsAtMax(t *testing.T) {
	s := newPending(t)

	for i := 0; i < s.MaxAttempts; i++ {
		if err := s.RecordAttempt(); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i+1, err)
		}
	}
	if s.IntegrationAttempts != s.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", s.MaxAttempts, s.IntegrationAttempts)
	}

	err := s.RecordAttempt()
	if !errors.Is(err, domainErrors.ErrMaxAttemptsExceeded) {
		t.Fatalf("expected ErrMaxAttemptsExceeded, got %v", err)
	}
	if s.IntegrationAttempts != s.MaxAttempts {
		t.Errorf("counter moved past the cap: %d", s.IntegrationAttempts)
	}
}

func TestCanRetryProvisioning(t *testing.T) {
	s := newPending(t)
	s.IntegrationStatus = subscription.IntegrationFailed
	s.IntegrationAttempts = 3
	if !s.CanRetryProvisioning() {
		t.Error("expected retryable")
	}

	s.IntegrationAttempts = s.MaxAttempts
	if s.CanRetryProvisioning() {
		t.Error("expected budget exhausted")
	}

	s.IntegrationStatus = subscription.IntegrationSucceeded
	s.IntegrationAttempts = 0
	if s.CanRetryProvisioning() {
		t.Error("succeeded subscriptions never retry")
	}
}

func TestActivate_ComputesPeriodEnd(t *testing.T) {
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	s := newPending(t)
	if err := s.Activate(at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != subscription.StatusActive {
		t.Errorf("expected active, got %s", s.Status)
	}
	if s.PeriodEnd == nil || !s.PeriodEnd.Equal(at.AddDate(0, 1, 0)) {
		t.Errorf("expected monthly period end %v, got %v", at.AddDate(0, 1, 0), s.PeriodEnd)
	}

	annual := newPending(t)
	annual.BillingPeriod = subscription.PeriodAnnual
	if err := annual.Activate(at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if annual.PeriodEnd == nil || !annual.PeriodEnd.Equal(at.AddDate(1, 0, 0)) {
		t.Errorf("expected annual period end %v, got %v", at.AddDate(1, 0, 0), annual.PeriodEnd)
	}
}

func TestActivate_OnlyFromPending(t *testing.T) {
	s := newPending(t)
	if err := s.Activate(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.Activate(time.Now())
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestExpire_OnlyFromPending(t *testing.T) {
	s := newPending(t)
	if err := s.Expire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != subscription.StatusExpired {
		t.Errorf("expected expired, got %s", s.Status)
	}

	err := s.Expire()
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	s := newPending(t)
	key := s.IdempotencyKey()
	if key != "sub-"+s.ID.String() {
		t.Errorf("unexpected key format: %s", key)
	}
	if key != s.IdempotencyKey() {
		t.Error("key must be stable across calls")
	}
}

func TestFailureRate(t *testing.T) {
	stats := subscription.IntegrationStats{}
	if got := stats.FailureRate(); got != 0 {
		t.Errorf("empty stats should rate 0, got %f", got)
	}

	stats = subscription.IntegrationStats{Attempted: 20, Failed: 3}
	if got := stats.FailureRate(); got != 0.15 {
		t.Errorf("expected 0.15, got %f", got)
	}
}

package controller

import (
	"time"

	"github.com/verionlabs/directory-billing/internal/domain/attempt"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string enums, validation tags).
// Controllers convert them before calling use cases.

// StartCheckoutRequest is the public signup form payload.
type StartCheckoutRequest struct {
	Email            string `json:"email" validate:"required,email"`
	OrganizationName string `json:"organization_name" validate:"required,max=200"`
	ContactName      string `json:"contact_name" validate:"required,max=200"`
	Phone            string `json:"phone" validate:"max=40"`
	Tier             string `json:"tier" validate:"required"`
	BillingPeriod    string `json:"billing_period" validate:"required,oneof=monthly annual"`
}

// --- Response DTOs ---

// StartCheckoutResponse points the browser at the hosted payment page.
type StartCheckoutResponse struct {
	SubscriptionID string `json:"subscription_id"`
	SessionID      string `json:"session_id"`
	CheckoutURL    string `json:"checkout_url"`
}

// WebhookResponse acknowledges an event delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// SubscriptionResponse is the admin view of a subscription.
type SubscriptionResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	OrganizationName    string     `json:"organization_name"`
	Tier                string     `json:"tier"`
	BillingPeriod       string     `json:"billing_period"`
	AmountCents         int64      `json:"amount_cents"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	ActivatedAt         *time.Time `json:"activated_at,omitempty"`
	PeriodEnd           *time.Time `json:"period_end,omitempty"`
	IntegrationStatus   string     `json:"integration_status"`
	IntegrationError    *string    `json:"integration_error,omitempty"`
	IntegrationAttempts int        `json:"integration_attempts"`
	MaxAttempts         int        `json:"max_attempts"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	BackendOrgID        *string    `json:"backend_org_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// AttemptResponse is one ledger entry in the admin view.
type AttemptResponse struct {
	Number      int       `json:"number"`
	Outcome     string    `json:"outcome"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorResponse is the common error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toSubscriptionResponse(s *subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                  s.ID.String(),
		Email:               s.Email,
		OrganizationName:    s.OrganizationName,
		Tier:                s.Tier,
		BillingPeriod:       string(s.BillingPeriod),
		AmountCents:         s.AmountCents,
		Currency:            s.Currency,
		Status:              string(s.Status),
		ActivatedAt:         s.ActivatedAt,
		PeriodEnd:           s.PeriodEnd,
		IntegrationStatus:   string(s.IntegrationStatus),
		IntegrationError:    s.IntegrationError,
		IntegrationAttempts: s.IntegrationAttempts,
		MaxAttempts:         s.MaxAttempts,
		LastAttemptAt:       s.LastAttemptAt,
		BackendOrgID:        s.BackendOrgID,
		CreatedAt:           s.CreatedAt,
	}
}

func toAttemptResponses(records []*attempt.Record) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(records))
	for _, r := range records {
		out = append(out, AttemptResponse{
			Number:      r.Number,
			Outcome:     string(r.Outcome),
			ErrorDetail: r.ErrorDetail,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/domain/checkout"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

func NewTestSubscription(tier string, period subscription.BillingPeriod) *subscription.Subscription {
	now := time.Now()
	return &subscription.Subscription{
		ID:                uuid.New(),
		Email:             "pastor@gracechapel.org",
		OrganizationName:  "Grace Chapel",
		ContactName:       "Sam Whitfield",
		Phone:             "+1-555-0142",
		Tier:              tier,
		BillingPeriod:     period,
		AmountCents:       2900,
		Currency:          "USD",
		Status:            subscription.StatusPending,
		IntegrationStatus: subscription.IntegrationNotStarted,
		MaxAttempts:       subscription.DefaultMaxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func NewPendingSession(subscriptionID uuid.UUID) *checkout.Session {
	id := "cs_" + uuid.New().String()[:16]
	return &checkout.Session{
		ID:             id,
		SubscriptionID: subscriptionID,
		Status:         checkout.StatusPending,
		CheckoutURL:    "https://pay.example.com/pay/" + id,
		CreatedAt:      time.Now(),
	}
}

// EventBody builds a raw processor event payload the intake path can parse.
func EventBody(eventID, eventType, sessionID string, metadata map[string]string) []byte {
	payload := map[string]any{
		"id":   eventID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":       sessionID,
				"customer": "cus_test123",
				"metadata": metadata,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal event fixture: %v", err))
	}
	return body
}

func StringPtr(s string) *string {
	return &s
}

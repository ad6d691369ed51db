package event

import (
	"context"
	"time"
)

// Kind is the closed set of recognized processor event types. Dispatch is
// exhaustive over these values; anything else parses to KindUnknown and is
// logged and acknowledged without side effects, never retried.
type Kind string

const (
	KindCheckoutCompleted Kind = "checkout.session.completed"
	KindCheckoutExpired   Kind = "checkout.session.expired"

	// Legacy direct payment-intent events, mapped onto the session outcomes.
	KindPaymentSucceeded Kind = "payment_intent.succeeded"
	KindPaymentFailed    Kind = "payment_intent.payment_failed"

	KindUnknown Kind = ""
)

// ParseKind maps a processor event-type string onto the closed Kind set.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindCheckoutCompleted, KindCheckoutExpired, KindPaymentSucceeded, KindPaymentFailed:
		return Kind(s)
	default:
		return KindUnknown
	}
}

// IsCompletion reports whether the kind signals a successful payment.
func (k Kind) IsCompletion() bool {
	return k == KindCheckoutCompleted || k == KindPaymentSucceeded
}

// IsExpiry reports whether the kind signals a terminal non-payment.
func (k Kind) IsExpiry() bool {
	return k == KindCheckoutExpired || k == KindPaymentFailed
}

// Envelope is the normalized webhook payload after parsing. Object carries the
// processor's session/intent object fields the handlers need.
type Envelope struct {
	ID      string
	Kind    Kind
	RawKind string
	Object  Object
}

// Object is the processor-side session or payment-intent the event is about.
type Object struct {
	SessionID      string
	SubscriptionID string
	CustomerID     string
}

// ProcessedEvent is the durable processed-event-ID record backing webhook
// idempotency. Retained for a bounded window, then swept.
type ProcessedEvent struct {
	ID          string
	Kind        string
	ProcessedAt time.Time
}

// Ledger is the persistence port for the processed-event set.
type Ledger interface {
	// MarkProcessed inserts the event ID. It returns false without error when
	// the ID was already present (duplicate delivery).
	MarkProcessed(ctx context.Context, id, kind string) (bool, error)

	// Sweep deletes records processed before the cutoff and returns the count.
	Sweep(ctx context.Context, before time.Time) (int64, error)
}

package processor

import "context"

// CheckoutRequest is what we hand the payment processor to open a hosted
// checkout page.
type CheckoutRequest struct {
	SubscriptionID string
	Email          string
	Description    string
	AmountCents    int64
	Currency       string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is the processor's answer: a session ID we persist and the
// URL the customer is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// Client creates hosted checkout sessions with the payment processor.
type Client interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

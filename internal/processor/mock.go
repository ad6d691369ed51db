package processor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
)

// MockClient simulates the processor's checkout API for local runs and tests.
type MockClient struct {
	baseURL     string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
}

type MockClientOption func(*MockClient)

func WithFailureRate(rate float64) MockClientOption {
	return func(c *MockClient) { c.failureRate = rate }
}

func WithLatency(d time.Duration) MockClientOption {
	return func(c *MockClient) { c.latency = d }
}

func NewMockClient(baseURL string, opts ...MockClientOption) *MockClient {
	c := &MockClient{
		baseURL:     baseURL,
		failureRate: 0.0,
		latency:     50 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MockClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	select {
	case <-time.After(c.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() < c.failureRate {
		return nil, fmt.Errorf("%w: simulated checkout failure", domainErrors.ErrBackendUnavailable)
	}

	id := "cs_" + uuid.New().String()[:16]
	return &CheckoutSession{
		ID:  id,
		URL: fmt.Sprintf("%s/pay/%s", c.baseURL, id),
	}, nil
}

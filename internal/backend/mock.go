package backend

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/google/uuid"
)

// MockClient is an in-memory backend for tests and local runs. It honors
// idempotency keys: a repeated key echoes the original organization.
type MockClient struct {
	mu          sync.Mutex
	byKey       map[string]*CreateResult
	failureRate float64
	rejectRate  float64
	latency     time.Duration
}

type MockOption func(*MockClient)

// WithFailureRate makes the given fraction of calls fail transiently.
func WithFailureRate(rate float64) MockOption {
	return func(c *MockClient) { c.failureRate = rate }
}

// WithRejectRate makes the given fraction of calls fail permanently.
func WithRejectRate(rate float64) MockOption {
	return func(c *MockClient) { c.rejectRate = rate }
}

// WithLatency delays every call by d.
func WithLatency(d time.Duration) MockOption {
	return func(c *MockClient) { c.latency = d }
}

func NewMockClient(opts ...MockOption) *MockClient {
	c := &MockClient{byKey: make(map[string]*CreateResult)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateOrganization implements Client.
func (c *MockClient) CreateOrganization(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrBackendTimeout, ctx.Err())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byKey[req.IdempotencyKey]; ok {
		echoed := *existing
		echoed.Status = StatusAlreadyExists
		return &echoed, nil
	}

	if rand.Float64() < c.rejectRate {
		return nil, fmt.Errorf("%w: invalid subscription data", domainErrors.ErrBackendRejected)
	}
	if rand.Float64() < c.failureRate {
		return nil, fmt.Errorf("%w: simulated outage", domainErrors.ErrBackendUnavailable)
	}

	result := &CreateResult{
		Status:         StatusCreated,
		OrganizationID: uuid.New().String(),
		TenantSlug:     "org-" + uuid.New().String()[:8],
	}
	c.byKey[req.IdempotencyKey] = result
	return result, nil
}

// Ping implements Client.
func (c *MockClient) Ping(ctx context.Context) error { return nil }

// Created returns how many distinct organizations exist, for test assertions.
func (c *MockClient) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

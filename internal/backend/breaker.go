package backend

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
)

// BreakerClient wraps a Client with a circuit breaker so a struggling backend
// sheds load quickly instead of tying up worker leases. Permanent rejections
// do not count as breaker failures; they are answers, not outages.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[*CreateResult]
}

// NewBreakerClient wraps inner with breaker settings tuned for a worker pool.
func NewBreakerClient(inner Client, threshold int, timeout time.Duration) *BreakerClient {
	if threshold <= 0 {
		threshold = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BreakerClient{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker[*CreateResult](gobreaker.Settings{
			Name:        "directory-backend",
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= uint32(threshold) && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domainErrors.ErrBackendRejected)
			},
		}),
	}
}

// CreateOrganization implements Client. An open breaker surfaces as a
// transient unavailability error and follows the normal retry path.
func (c *BreakerClient) CreateOrganization(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	result, err := c.breaker.Execute(func() (*CreateResult, error) {
		return c.inner.CreateOrganization(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domainErrors.ErrBackendUnavailable
		}
		return nil, err
	}
	return result, nil
}

// Ping implements Client, bypassing the breaker so readiness probes observe
// the real backend state.
func (c *BreakerClient) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

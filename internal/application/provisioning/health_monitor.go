package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/infrastructure/observability"
)

// HealthMonitor periodically computes the provisioning failure rate over a
// rolling window and raises an alert when it crosses the threshold.
type HealthMonitor struct {
	subs      subscription.Repository
	metrics   *observability.Metrics
	window    time.Duration
	threshold float64
	logger    zerolog.Logger
}

// NewHealthMonitor creates a new HealthMonitor.
func NewHealthMonitor(
	subs subscription.Repository,
	metrics *observability.Metrics,
	window time.Duration,
	threshold float64,
	logger zerolog.Logger,
) *HealthMonitor {
	return &HealthMonitor{
		subs:      subs,
		metrics:   metrics,
		window:    window,
		threshold: threshold,
		logger:    logger,
	}
}

// Check computes stats for the current window and reports whether the
// failure rate is above the threshold.
func (m *HealthMonitor) Check(ctx context.Context) (subscription.IntegrationStats, bool, error) {
	stats, err := m.subs.Stats(ctx, time.Now().Add(-m.window))
	if err != nil {
		return subscription.IntegrationStats{}, false, fmt.Errorf("integration stats: %w", err)
	}

	rate := stats.FailureRate()
	m.metrics.IntegrationFailureRate.Set(rate)

	unhealthy := stats.Attempted > 0 && rate >= m.threshold
	if unhealthy {
		m.logger.Warn().
			Float64("failure_rate", rate).
			Float64("threshold", m.threshold).
			Int64("attempted", stats.Attempted).
			Int64("failed", stats.Failed).
			Msg("Provisioning failure rate above threshold")
	} else {
		m.logger.Debug().
			Float64("failure_rate", rate).
			Int64("attempted", stats.Attempted).
			Msg("Provisioning health check")
	}
	return stats, unhealthy, nil
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Webhook metrics
	WebhookEventsTotal   *prometheus.CounterVec
	WebhookDuplicates    prometheus.Counter
	WebhookRejections    *prometheus.CounterVec

	// Provisioning metrics
	ProvisioningTotal    *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec
	ProvisioningRetries  prometheus.Counter
	IntegrationFailureRate prometheus.Gauge

	// Queue metrics
	TasksEnqueued   *prometheus.CounterVec
	TasksDispatched *prometheus.CounterVec
	TasksReclaimed  prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total webhook events received, by event type and result",
			},
			[]string{"type", "result"},
		),
		WebhookDuplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_duplicate_events_total",
				Help:      "Total duplicate webhook deliveries acknowledged without side effects",
			},
		),
		WebhookRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_rejections_total",
				Help:      "Total webhook deliveries rejected at the boundary",
			},
			[]string{"reason"},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provisioning_attempts_total",
				Help:      "Total provisioning attempts, by outcome",
			},
			[]string{"outcome"},
		),
		ProvisioningDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provisioning_duration_seconds",
				Help:      "Provisioning attempt duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		ProvisioningRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provisioning_retries_total",
				Help:      "Total provisioning tasks re-enqueued by the retry scheduler",
			},
		),
		IntegrationFailureRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "integration_failure_rate",
				Help:      "Failed subscriptions over attempted subscriptions in the monitor window",
			},
		),
		TasksEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_enqueued_total",
				Help:      "Total provisioning tasks written to the durable task table",
			},
			[]string{"source"},
		),
		TasksDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_dispatched_total",
				Help:      "Total task rows published to the stream, by result",
			},
			[]string{"result"},
		),
		TasksReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_reclaimed_total",
				Help:      "Total abandoned deliveries reclaimed after the visibility timeout",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.WebhookEventsTotal,
		m.WebhookDuplicates,
		m.WebhookRejections,
		m.ProvisioningTotal,
		m.ProvisioningDuration,
		m.ProvisioningRetries,
		m.IntegrationFailureRate,
		m.TasksEnqueued,
		m.TasksDispatched,
		m.TasksReclaimed,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

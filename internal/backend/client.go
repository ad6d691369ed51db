package backend

import (
	"context"
)

// Status classifies the outcome of a create-organization call.
type Status string

const (
	// StatusCreated means the organization was created by this call.
	StatusCreated Status = "created"
	// StatusAlreadyExists means the backend honored the idempotency key and
	// echoed the earlier result. Treated as success.
	StatusAlreadyExists Status = "already_exists"
	// StatusRejected means the backend permanently rejected the subscription
	// data. Never retried.
	StatusRejected Status = "rejected"
)

// CreateRequest carries the subscription data for organization provisioning.
// IdempotencyKey is deterministic per subscription so repeated attempts never
// create duplicate organizations.
type CreateRequest struct {
	IdempotencyKey      string
	SubscriptionID      string
	OrganizationName    string
	ContactName         string
	ContactEmail        string
	ContactPhone        string
	Tier                string
	BillingPeriod       string
	AmountCents         int64
	ProcessorCustomerID string
}

// CreateResult is the backend's answer to a successful (non-error) call.
type CreateResult struct {
	Status         Status
	OrganizationID string
	TenantSlug     string
}

// Succeeded reports whether the organization durably exists after this call.
func (r *CreateResult) Succeeded() bool {
	return r.Status == StatusCreated || r.Status == StatusAlreadyExists
}

// Client is the port to the external directory backend. Errors returned are
// either ErrBackendRejected (permanent) or transient transport/availability
// failures; callers classify with errors.IsTransient.
type Client interface {
	// CreateOrganization provisions the organization for a paid subscription.
	CreateOrganization(ctx context.Context, req CreateRequest) (*CreateResult, error)
	// Ping checks backend reachability, for readiness probes and the admin CLI.
	Ping(ctx context.Context) error
}

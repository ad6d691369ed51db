package webhook

import "context"

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(body []byte, header string) error
}

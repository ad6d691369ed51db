package errors

import (
	"errors"
	"fmt"
)

var (
	// Webhook boundary errors
	ErrSignatureInvalid  = errors.New("webhook signature invalid")
	ErrSignatureExpired  = errors.New("webhook signature timestamp outside tolerance")
	ErrDuplicateEvent    = errors.New("webhook event already processed")
	ErrMalformedEnvelope = errors.New("malformed webhook event envelope")

	// Subscription errors
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMaxAttemptsExceeded    = errors.New("max provisioning attempts exceeded")
	ErrAlreadyProvisioned     = errors.New("subscription already provisioned")
	ErrTierNotFound           = errors.New("pricing tier not found")

	// Backend (external collaborator) errors
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendTimeout     = errors.New("backend request timeout")
	ErrBackendRejected    = errors.New("subscription rejected by backend")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// IsTransient reports whether a provisioning failure should consume retry
// budget and be retried. Backend rejections are permanent; everything else
// reaching the worker's failure path (network, timeout, 5xx) is transient.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrBackendRejected)
}

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/domain/checkout"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/event"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/internal/webhook"
)

// Outcome classifies how an incoming event was handled.
type Outcome string

const (
	// OutcomeProcessed means the event caused state changes and an enqueue.
	OutcomeProcessed Outcome = "processed"
	// OutcomeDuplicate means the event ID was seen before; nothing changed.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event kind is not one we act on.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeStale means the target was already in a terminal state.
	OutcomeStale Outcome = "stale"
)

// Result carries the handled event's identity for logging and metrics.
type Result struct {
	Outcome Outcome
	EventID string
	Kind    event.Kind
	RawKind string
	// TaskEnqueued reports whether this event wrote a provisioning task.
	TaskEnqueued bool
}

// HandleEventUseCase is the webhook intake path: authenticate, deduplicate,
// apply the event to the session and subscription, and enqueue provisioning.
// All state changes for one event commit in a single transaction together
// with the processed-event marker, so an event is either fully applied or
// not applied at all.
type HandleEventUseCase struct {
	verifier  Verifier
	ledger    event.Ledger
	sessions  checkout.Repository
	subs      subscription.Repository
	tasks     task.Repository
	txManager TransactionManager
	now       func() time.Time
}

// NewHandleEventUseCase creates a new HandleEventUseCase.
func NewHandleEventUseCase(
	verifier Verifier,
	ledger event.Ledger,
	sessions checkout.Repository,
	subs subscription.Repository,
	tasks task.Repository,
	txManager TransactionManager,
) *HandleEventUseCase {
	return &HandleEventUseCase{
		verifier:  verifier,
		ledger:    ledger,
		sessions:  sessions,
		subs:      subs,
		tasks:     tasks,
		txManager: txManager,
		now:       time.Now,
	}
}

// Execute verifies and applies one raw webhook delivery.
// Signature failures surface as ErrSignatureInvalid / ErrSignatureExpired and
// must be answered before any parsing side effects.
func (uc *HandleEventUseCase) Execute(ctx context.Context, body []byte, signatureHeader string) (*Result, error) {
	if err := uc.verifier.Verify(body, signatureHeader); err != nil {
		return nil, err
	}

	env, err := webhook.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	result := &Result{EventID: env.ID, Kind: env.Kind, RawKind: env.RawKind}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := uc.ledger.MarkProcessed(txCtx, env.ID, env.RawKind)
		if err != nil {
			return err
		}
		if !fresh {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		switch {
		case env.Kind == event.KindUnknown:
			// Unrecognized kinds are acknowledged and remembered so the
			// processor stops redelivering them.
			result.Outcome = OutcomeIgnored
			return nil
		case env.Kind.IsCompletion():
			return uc.applyCompletion(txCtx, env, result)
		case env.Kind.IsExpiry():
			return uc.applyExpiry(txCtx, env, result)
		default:
			result.Outcome = OutcomeIgnored
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyCompletion activates the subscription and enqueues provisioning.
func (uc *HandleEventUseCase) applyCompletion(ctx context.Context, env *event.Envelope, result *Result) error {
	sess, sub, err := uc.resolve(ctx, env)
	if err != nil {
		return err
	}

	if sub.Status != subscription.StatusPending {
		// A terminal subscription cannot move again; the redelivered or
		// out-of-order event is acknowledged without effect.
		result.Outcome = OutcomeStale
		return nil
	}

	now := uc.now()
	if sess != nil {
		if sess.IsTerminal() {
			result.Outcome = OutcomeStale
			return nil
		}
		if err := sess.Complete(now); err != nil {
			return err
		}
		if err := uc.sessions.Update(ctx, sess); err != nil {
			return err
		}
	}

	if err := sub.Activate(now); err != nil {
		return err
	}
	if env.Object.CustomerID != "" {
		customerID := env.Object.CustomerID
		sub.ProcessorCustomerID = &customerID
	}
	if err := sub.BeginProvisioning(); err != nil {
		return err
	}
	if err := uc.subs.Update(ctx, sub); err != nil {
		return err
	}

	open, err := uc.tasks.HasOpen(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !open {
		if err := uc.tasks.Insert(ctx, task.New(sub.ID, sub.IntegrationAttempts)); err != nil {
			return err
		}
		result.TaskEnqueued = true
	}

	result.Outcome = OutcomeProcessed
	return nil
}

// applyExpiry marks the session and subscription abandoned. No provisioning
// is enqueued.
func (uc *HandleEventUseCase) applyExpiry(ctx context.Context, env *event.Envelope, result *Result) error {
	sess, sub, err := uc.resolve(ctx, env)
	if err != nil {
		return err
	}

	if sub.Status != subscription.StatusPending {
		result.Outcome = OutcomeStale
		return nil
	}

	if sess != nil {
		if sess.IsTerminal() {
			result.Outcome = OutcomeStale
			return nil
		}
		if err := sess.Expire(); err != nil {
			return err
		}
		if err := uc.sessions.Update(ctx, sess); err != nil {
			return err
		}
	}

	if err := sub.Expire(); err != nil {
		return err
	}
	if err := uc.subs.Update(ctx, sub); err != nil {
		return err
	}

	result.Outcome = OutcomeProcessed
	return nil
}

// resolve finds the session (when the event carries one) and its subscription.
// Legacy payment-intent events carry only the subscription ID in metadata.
func (uc *HandleEventUseCase) resolve(ctx context.Context, env *event.Envelope) (*checkout.Session, *subscription.Subscription, error) {
	if env.Kind == event.KindCheckoutCompleted || env.Kind == event.KindCheckoutExpired {
		sess, err := uc.sessions.GetByID(ctx, env.Object.SessionID)
		if err != nil {
			return nil, nil, err
		}
		sub, err := uc.subs.GetByID(ctx, sess.SubscriptionID)
		if err != nil {
			return nil, nil, err
		}
		return sess, sub, nil
	}

	subID, err := uuid.Parse(env.Object.SubscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad subscription_id metadata", domainErrors.ErrMalformedEnvelope)
	}
	sub, err := uc.subs.GetByID(ctx, subID)
	if err != nil {
		return nil, nil, err
	}
	return nil, sub, nil
}

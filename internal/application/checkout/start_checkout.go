package checkout

import (
	"context"
	"fmt"

	"github.com/verionlabs/directory-billing/internal/domain/checkout"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/processor"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// tierPrices maps tier and billing period to the charge in cents.
var tierPrices = map[string]map[subscription.BillingPeriod]int64{
	"basic": {
		subscription.PeriodMonthly: 1500,
		subscription.PeriodAnnual:  15000,
	},
	"standard": {
		subscription.PeriodMonthly: 2900,
		subscription.PeriodAnnual:  29000,
	},
	"premium": {
		subscription.PeriodMonthly: 4900,
		subscription.PeriodAnnual:  49000,
	},
}

// StartCheckoutInput is the signup form payload.
type StartCheckoutInput struct {
	Email            string
	OrganizationName string
	ContactName      string
	Phone            string
	Tier             string
	BillingPeriod    subscription.BillingPeriod
	SuccessURL       string
	CancelURL        string
}

// StartCheckoutOutput points the caller at the processor's hosted page.
type StartCheckoutOutput struct {
	SubscriptionID string
	SessionID      string
	CheckoutURL    string
}

// StartCheckoutUseCase creates a pending subscription and opens a hosted
// checkout session for it.
type StartCheckoutUseCase struct {
	subs        subscription.Repository
	sessions    checkout.Repository
	processor   processor.Client
	txManager   TransactionManager
	currency    string
	maxAttempts int
}

// NewStartCheckoutUseCase creates a new StartCheckoutUseCase. maxAttempts is
// the provisioning retry budget stamped on each new subscription; zero or
// negative keeps the domain default.
func NewStartCheckoutUseCase(
	subs subscription.Repository,
	sessions checkout.Repository,
	client processor.Client,
	txManager TransactionManager,
	currency string,
	maxAttempts int,
) *StartCheckoutUseCase {
	return &StartCheckoutUseCase{
		subs:        subs,
		sessions:    sessions,
		processor:   client,
		txManager:   txManager,
		currency:    currency,
		maxAttempts: maxAttempts,
	}
}

// Execute validates the signup, asks the processor for a checkout session and
// records both rows. The processor call happens before the transaction; an
// orphaned processor session is harmless because nothing references it until
// its webhook arrives, and an unknown session event fails lookup.
func (uc *StartCheckoutUseCase) Execute(ctx context.Context, input StartCheckoutInput) (*StartCheckoutOutput, error) {
	amount, err := priceFor(input.Tier, input.BillingPeriod)
	if err != nil {
		return nil, err
	}

	sub, err := subscription.New(
		input.Email, input.OrganizationName, input.ContactName, input.Phone,
		input.Tier, input.BillingPeriod, amount, uc.currency,
	)
	if err != nil {
		return nil, err
	}
	if uc.maxAttempts > 0 {
		sub.MaxAttempts = uc.maxAttempts
	}

	procSess, err := uc.processor.CreateCheckoutSession(ctx, processor.CheckoutRequest{
		SubscriptionID: sub.ID.String(),
		Email:          sub.Email,
		Description:    fmt.Sprintf("%s directory listing (%s)", sub.Tier, sub.BillingPeriod),
		AmountCents:    amount,
		Currency:       uc.currency,
		SuccessURL:     input.SuccessURL,
		CancelURL:      input.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	sess, err := checkout.NewSession(procSess.ID, sub.ID, procSess.URL)
	if err != nil {
		return nil, err
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.subs.Create(txCtx, sub); err != nil {
			return err
		}
		return uc.sessions.Create(txCtx, sess)
	})
	if err != nil {
		return nil, err
	}

	return &StartCheckoutOutput{
		SubscriptionID: sub.ID.String(),
		SessionID:      sess.ID,
		CheckoutURL:    sess.CheckoutURL,
	}, nil
}

func priceFor(tier string, period subscription.BillingPeriod) (int64, error) {
	periods, ok := tierPrices[tier]
	if !ok {
		return 0, domainErrors.ErrTierNotFound
	}
	amount, ok := periods[period]
	if !ok {
		return 0, domainErrors.NewValidationError("billing_period", "must be monthly or annual")
	}
	return amount, nil
}

package checkout_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	checkoutApp "github.com/verionlabs/directory-billing/internal/application/checkout"
	checkoutDomain "github.com/verionlabs/directory-billing/internal/domain/checkout"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/processor"
	"github.com/verionlabs/directory-billing/internal/testutil"
)

type checkoutFixture struct {
	subs     *testutil.MockSubscriptionRepository
	sessions *testutil.MockCheckoutRepository
	uc       *checkoutApp.StartCheckoutUseCase
}

func newCheckoutFixture(opts ...processor.MockClientOption) *checkoutFixture {
	return newCheckoutFixtureWithBudget(0, opts...)
}

func newCheckoutFixtureWithBudget(maxAttempts int, opts ...processor.MockClientOption) *checkoutFixture {
	opts = append([]processor.MockClientOption{processor.WithLatency(0)}, opts...)
	subs := testutil.NewMockSubscriptionRepository()
	sessions := testutil.NewMockCheckoutRepository()
	uc := checkoutApp.NewStartCheckoutUseCase(
		subs, sessions,
		processor.NewMockClient("https://pay.example.com", opts...),
		&testutil.MockTxManager{},
		"USD",
		maxAttempts,
	)
	return &checkoutFixture{subs: subs, sessions: sessions, uc: uc}
}

func validInput() checkoutApp.StartCheckoutInput {
	return checkoutApp.StartCheckoutInput{
		Email:            "admin@gracechapel.org",
		OrganizationName: "Grace Chapel",
		ContactName:      "Sarah Okafor",
		Phone:            "+15551230987",
		Tier:             "standard",
		BillingPeriod:    subscription.PeriodMonthly,
		SuccessURL:       "https://app.example.com/welcome",
		CancelURL:        "https://app.example.com/pricing",
	}
}

func TestStartCheckout_CreatesSubscriptionAndSession(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	out, err := f.uc.Execute(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SessionID == "" || !strings.HasPrefix(out.CheckoutURL, "https://pay.example.com/pay/") {
		t.Errorf("unexpected output: %+v", out)
	}

	sess, err := f.sessions.GetByID(ctx, out.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if sess.Status != checkoutDomain.StatusPending {
		t.Errorf("expected pending session, got %s", sess.Status)
	}

	sub, err := f.subs.GetByID(ctx, sess.SubscriptionID)
	if err != nil {
		t.Fatalf("subscription not persisted: %v", err)
	}
	if sub.Status != subscription.StatusPending {
		t.Errorf("expected pending subscription, got %s", sub.Status)
	}
	if sub.AmountCents != 2900 || sub.Currency != "USD" {
		t.Errorf("unexpected pricing: %d %s", sub.AmountCents, sub.Currency)
	}
	if sub.IntegrationStatus != subscription.IntegrationNotStarted {
		t.Errorf("provisioning must not start at checkout, got %s", sub.IntegrationStatus)
	}
}

func TestStartCheckout_AnnualPricing(t *testing.T) {
	f := newCheckoutFixture()

	input := validInput()
	input.Tier = "premium"
	input.BillingPeriod = subscription.PeriodAnnual

	out, err := f.uc.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, _ := f.sessions.GetByID(context.Background(), out.SessionID)
	sub, _ := f.subs.GetByID(context.Background(), sess.SubscriptionID)
	if sub.AmountCents != 49000 {
		t.Errorf("expected 49000 cents, got %d", sub.AmountCents)
	}
}

func TestStartCheckout_ConfiguredRetryBudget(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixtureWithBudget(3)

	out, err := f.uc.Execute(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, _ := f.sessions.GetByID(ctx, out.SessionID)
	sub, _ := f.subs.GetByID(ctx, sess.SubscriptionID)
	if sub.MaxAttempts != 3 {
		t.Errorf("expected configured budget of 3, got %d", sub.MaxAttempts)
	}
}

func TestStartCheckout_DefaultRetryBudget(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	out, err := f.uc.Execute(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, _ := f.sessions.GetByID(ctx, out.SessionID)
	sub, _ := f.subs.GetByID(ctx, sess.SubscriptionID)
	if sub.MaxAttempts != subscription.DefaultMaxAttempts {
		t.Errorf("expected default budget, got %d", sub.MaxAttempts)
	}
}

func TestStartCheckout_UnknownTier(t *testing.T) {
	f := newCheckoutFixture()

	input := validInput()
	input.Tier = "platinum"

	_, err := f.uc.Execute(context.Background(), input)
	if !errors.Is(err, domainErrors.ErrTierNotFound) {
		t.Errorf("expected ErrTierNotFound, got %v", err)
	}
}

func TestStartCheckout_BadBillingPeriod(t *testing.T) {
	f := newCheckoutFixture()

	input := validInput()
	input.BillingPeriod = subscription.BillingPeriod("weekly")

	_, err := f.uc.Execute(context.Background(), input)
	var vErr *domainErrors.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStartCheckout_ProcessorDownWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(processor.WithFailureRate(1.0))
	f.subs.CreateFunc = func(ctx context.Context, s *subscription.Subscription) error {
		t.Error("no subscription row expected when the processor is down")
		return nil
	}
	f.sessions.CreateFunc = func(ctx context.Context, s *checkoutDomain.Session) error {
		t.Error("no session row expected when the processor is down")
		return nil
	}

	_, err := f.uc.Execute(ctx, validInput())
	if !errors.Is(err, domainErrors.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

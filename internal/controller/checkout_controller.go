package controller

import (
	"net/http"

	checkoutApp "github.com/verionlabs/directory-billing/internal/application/checkout"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

// CheckoutController serves the public signup endpoint.
type CheckoutController struct {
	startCheckout *checkoutApp.StartCheckoutUseCase
	successURL    string
	cancelURL     string
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(startCheckout *checkoutApp.StartCheckoutUseCase, successURL, cancelURL string) *CheckoutController {
	return &CheckoutController{
		startCheckout: startCheckout,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// Start handles POST /api/v1/checkout.
func (h *CheckoutController) Start(w http.ResponseWriter, r *http.Request) {
	var req StartCheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.startCheckout.Execute(r.Context(), checkoutApp.StartCheckoutInput{
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
		ContactName:      req.ContactName,
		Phone:            req.Phone,
		Tier:             req.Tier,
		BillingPeriod:    subscription.BillingPeriod(req.BillingPeriod),
		SuccessURL:       h.successURL,
		CancelURL:        h.cancelURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, StartCheckoutResponse{
		SubscriptionID: out.SubscriptionID,
		SessionID:      out.SessionID,
		CheckoutURL:    out.CheckoutURL,
	})
}

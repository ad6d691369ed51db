package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	"github.com/verionlabs/directory-billing/internal/domain/attempt"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
)

// AdminController serves the operator surface: inspect a subscription's
// provisioning history and force a retry.
type AdminController struct {
	subs       subscription.Repository
	attempts   attempt.Repository
	forceRetry *provisioningApp.ForceRetryUseCase
}

// NewAdminController creates a new AdminController.
func NewAdminController(
	subs subscription.Repository,
	attempts attempt.Repository,
	forceRetry *provisioningApp.ForceRetryUseCase,
) *AdminController {
	return &AdminController{subs: subs, attempts: attempts, forceRetry: forceRetry}
}

// GetSubscription handles GET /api/v1/admin/subscriptions/{id}.
func (h *AdminController) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a UUID"))
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.attempts.ListBySubscription(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SubscriptionResponse
		Attempts []AttemptResponse `json:"attempts"`
	}{toSubscriptionResponse(sub), toAttemptResponses(records)})
}

// RetryProvisioning handles POST /api/v1/admin/subscriptions/{id}/retry.
func (h *AdminController) RetryProvisioning(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a UUID"))
		return
	}

	if err := h.forceRetry.Execute(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSubscriptionResponse(sub))
}

package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	webhookApp "github.com/verionlabs/directory-billing/internal/application/webhook"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/infrastructure/observability"
	"github.com/verionlabs/directory-billing/internal/webhook"
)

// maxWebhookBody caps event payload size; the processor's events are small.
const maxWebhookBody = 1 << 20

// WebhookController is the processor-facing intake endpoint.
type WebhookController struct {
	handleEvent *webhookApp.HandleEventUseCase
	metrics     *observability.Metrics
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(handleEvent *webhookApp.HandleEventUseCase, metrics *observability.Metrics) *WebhookController {
	return &WebhookController{handleEvent: handleEvent, metrics: metrics}
}

// Receive handles POST /webhooks/payment. The raw body must be read before
// any decoding because the signature covers the exact bytes sent.
func (h *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("body", "unreadable body"))
		return
	}

	result, err := h.handleEvent.Execute(r.Context(), body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		h.countRejection(err)
		log.Warn().Err(err).Msg("webhook event rejected")
		writeError(w, err)
		return
	}

	h.metrics.WebhookEventsTotal.WithLabelValues(result.RawKind, string(result.Outcome)).Inc()
	if result.Outcome == webhookApp.OutcomeDuplicate {
		h.metrics.WebhookDuplicates.Inc()
	}
	if result.TaskEnqueued {
		h.metrics.TasksEnqueued.WithLabelValues("webhook").Inc()
	}

	log.Info().
		Str("event_id", result.EventID).
		Str("type", result.RawKind).
		Str("outcome", string(result.Outcome)).
		Msg("webhook event handled")

	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Outcome: string(result.Outcome)})
}

func (h *WebhookController) countRejection(err error) {
	reason := "internal"
	switch {
	case errors.Is(err, domainErrors.ErrSignatureInvalid):
		reason = "invalid_signature"
	case errors.Is(err, domainErrors.ErrSignatureExpired):
		reason = "signature_expired"
	case errors.Is(err, domainErrors.ErrMalformedEnvelope):
		reason = "malformed"
	}
	h.metrics.WebhookRejections.WithLabelValues(reason).Inc()
}

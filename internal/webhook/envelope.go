package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/event"
)

// wireEnvelope mirrors the processor's JSON event shape: {id, type, data:{object}}.
type wireEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object wireObject `json:"object"`
	} `json:"data"`
}

type wireObject struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// ParseEnvelope decodes and normalizes a raw webhook body. Unrecognized event
// types parse successfully with Kind set to KindUnknown; a missing event ID is
// malformed because idempotency depends on it.
func ParseEnvelope(body []byte) (*event.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err)
	}
	if w.ID == "" || w.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", errors.ErrMalformedEnvelope)
	}

	return &event.Envelope{
		ID:      w.ID,
		Kind:    event.ParseKind(w.Type),
		RawKind: w.Type,
		Object: event.Object{
			SessionID:      w.Data.Object.ID,
			SubscriptionID: w.Data.Object.Metadata["subscription_id"],
			CustomerID:     w.Data.Object.Customer,
		},
	}, nil
}

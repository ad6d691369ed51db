package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/event"
)

func TestParseEnvelope(t *testing.T) {
	body := []byte(`{
		"id": "evt_abc123",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_xyz",
				"customer": "cus_77",
				"metadata": {"subscription_id": "f3b9c6e0-0000-0000-0000-000000000001"}
			}
		}
	}`)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_abc123", env.ID)
	assert.Equal(t, event.KindCheckoutCompleted, env.Kind)
	assert.Equal(t, "checkout.session.completed", env.RawKind)
	assert.Equal(t, "cs_xyz", env.Object.SessionID)
	assert.Equal(t, "cus_77", env.Object.CustomerID)
	assert.Equal(t, "f3b9c6e0-0000-0000-0000-000000000001", env.Object.SubscriptionID)
}

func TestParseEnvelope_UnknownTypeStillParses(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, event.KindUnknown, env.Kind)
	assert.Equal(t, "customer.created", env.RawKind)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing id", `{"type":"checkout.session.completed"}`},
		{"missing type", `{"id":"evt_1"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.body))
			assert.ErrorIs(t, err, domainErrors.ErrMalformedEnvelope)
		})
	}
}

package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
)

const testSecret = "whsec_test_0123456789abcdef"

func fixedVerifier(at time.Time) *Verifier {
	v := NewVerifier(testSecret, DefaultTolerance)
	v.now = func() time.Time { return at }
	return v
}

func TestVerify_ValidSignature(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	header := Sign(testSecret, now, body)
	err := fixedVerifier(now).Verify(body, header)
	require.NoError(t, err)
}

func TestVerify_TamperedBody(t *testing.T) {
	now := time.Now()
	body := []byte(`{"id":"evt_1","amount":2900}`)
	header := Sign(testSecret, now, body)

	tampered := []byte(`{"id":"evt_1","amount":9900}`)
	err := fixedVerifier(now).Verify(tampered, header)
	assert.ErrorIs(t, err, domainErrors.ErrSignatureInvalid)
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)
	header := Sign("whsec_other_secret", now, body)

	err := fixedVerifier(now).Verify(body, header)
	assert.ErrorIs(t, err, domainErrors.ErrSignatureInvalid)
}

func TestVerify_StaleTimestamp(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)

	header := Sign(testSecret, now.Add(-6*time.Minute), body)
	err := fixedVerifier(now).Verify(body, header)
	assert.ErrorIs(t, err, domainErrors.ErrSignatureExpired)

	// Future timestamps beyond tolerance are rejected too.
	header = Sign(testSecret, now.Add(6*time.Minute), body)
	err = fixedVerifier(now).Verify(body, header)
	assert.ErrorIs(t, err, domainErrors.ErrSignatureExpired)
}

func TestVerify_WithinTolerance(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)

	header := Sign(testSecret, now.Add(-4*time.Minute), body)
	err := fixedVerifier(now).Verify(body, header)
	assert.NoError(t, err)
}

func TestVerify_MalformedHeaders(t *testing.T) {
	now := time.Now()
	v := fixedVerifier(now)
	body := []byte(`{}`)

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"missing v1", "t=1700000000"},
		{"missing t", "v1=deadbeef"},
		{"garbage timestamp", "t=abc,v1=deadbeef"},
		{"no structure", "nonsense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(body, tt.header)
			assert.ErrorIs(t, err, domainErrors.ErrSignatureInvalid)
		})
	}
}

func TestVerify_MultipleSignatures(t *testing.T) {
	// Secret rotation sends several v1 entries; one valid entry passes.
	now := time.Now()
	body := []byte(`{"id":"evt_2"}`)
	valid := Sign(testSecret, now, body)

	combined := valid + ",v1=0000000000000000000000000000000000000000000000000000000000000000"
	err := fixedVerifier(now).Verify(body, combined)
	assert.NoError(t, err)
}

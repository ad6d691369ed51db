package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/verionlabs/directory-billing/internal/domain/errors"
)

// SignatureHeader is the header the processor signs deliveries with.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the allowed clock skew between the signed timestamp and
// the receiver's clock.
const DefaultTolerance = 5 * time.Minute

// Verifier checks processor webhook signatures: HMAC-SHA256 over
// "<timestamp>.<raw body>" with a shared secret, carried in the signature
// header as "t=<unix>,v1=<hex digest>".
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier with the shared endpoint secret.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify checks the signature header against the raw request body. A failure
// is a hard rejection and must never be retried.
func (v *Verifier) Verify(body []byte, header string) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	issued := time.Unix(ts, 0)
	skew := v.now().Sub(issued)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return errors.ErrSignatureExpired
	}

	expected := computeSignature(v.secret, ts, body)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errors.ErrSignatureInvalid
}

// Sign produces a signature header value for the body, used by tests and the
// local delivery tool.
func Sign(secret string, at time.Time, body []byte) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature([]byte(secret), ts, body))
}

func computeSignature(secret []byte, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, errors.ErrSignatureInvalid
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, errors.ErrSignatureInvalid
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}

	if ts == 0 || len(sigs) == 0 {
		return 0, nil, errors.ErrSignatureInvalid
	}
	return ts, sigs, nil
}

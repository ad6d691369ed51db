package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
)

const userAgent = "directory-billing/1.0"

// HTTPClient talks to the directory backend over HTTP with bearer auth. The
// request timeout must be strictly shorter than the queue's visibility
// timeout; bootstrap validates that.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a backend client. timeout bounds the whole call
// including connection setup and body read.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type createOrganizationBody struct {
	Name                string  `json:"name"`
	ContactName         string  `json:"contact_name"`
	ContactEmail        string  `json:"contact_email"`
	ContactPhone        string  `json:"contact_phone"`
	SubscriptionTier    string  `json:"subscription_tier"`
	BillingPeriod       string  `json:"billing_period"`
	SubscriptionAmount  float64 `json:"subscription_amount"`
	ProcessorCustomerID string  `json:"processor_customer_id,omitempty"`
	MarketingSubscriptionID string `json:"marketing_subscription_id"`
}

type createOrganizationResponse struct {
	OrganizationID string `json:"organization_id"`
	TenantSlug     string `json:"tenant_slug"`
	AlreadyExists  bool   `json:"already_exists"`
	Error          string `json:"error"`
}

// CreateOrganization implements Client. 4xx responses are permanent
// rejections; 5xx, timeouts and transport failures are transient.
func (c *HTTPClient) CreateOrganization(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	body := createOrganizationBody{
		Name:                req.OrganizationName,
		ContactName:         req.ContactName,
		ContactEmail:        req.ContactEmail,
		ContactPhone:        req.ContactPhone,
		SubscriptionTier:    req.Tier,
		BillingPeriod:       req.BillingPeriod,
		SubscriptionAmount:  float64(req.AmountCents) / 100,
		ProcessorCustomerID: req.ProcessorCustomerID,
		MarketingSubscriptionID: req.SubscriptionID,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal create organization request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/public/organizations/create-from-marketing/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build create organization request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrBackendTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded createOrganizationResponse
	// Non-JSON bodies on error paths are tolerated; the status code decides.
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		status := StatusCreated
		if decoded.AlreadyExists || resp.StatusCode == http.StatusOK {
			status = StatusAlreadyExists
		}
		return &CreateResult{
			Status:         status,
			OrganizationID: decoded.OrganizationID,
			TenantSlug:     decoded.TenantSlug,
		}, nil

	case resp.StatusCode == http.StatusConflict:
		return &CreateResult{
			Status:         StatusAlreadyExists,
			OrganizationID: decoded.OrganizationID,
			TenantSlug:     decoded.TenantSlug,
		}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail := decoded.Error
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrBackendRejected, detail)

	default:
		return nil, fmt.Errorf("%w: backend returned %s", domainErrors.ErrBackendUnavailable, resp.Status)
	}
}

// Ping implements Client.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health endpoint returned %s", domainErrors.ErrBackendUnavailable, resp.Status)
	}
	return nil
}

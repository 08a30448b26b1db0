// Package client talks to the external payment provider API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inkflow_backend/platform/config"
)

// Client is the payment provider HTTP client. A nil Client means payments
// are not configured; callers must check IsConfigured.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a payment provider client, or nil when the provider is not
// configured.
func New(cfg config.PaymentsConfig) *Client {
	if !cfg.IsPaymentsEnabled() {
		return nil
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.GetPaymentsAPIURL(),
		apiKey:     cfg.GetPaymentsAPIKey(),
	}
}

// IsConfigured reports whether the provider is usable.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// CheckoutParams describes a deposit checkout session.
type CheckoutParams struct {
	OrgID         string `json:"orgId"`
	AppointmentID string `json:"appointmentId"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
}

// Checkout is the created checkout session.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout creates a hosted checkout session for a deposit.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var checkout Checkout
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}
	return &checkout, nil
}

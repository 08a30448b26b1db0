// Package sms delivers outbound text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/phone"
)

// Client talks to the SMS gateway. A nil Client is valid and reports itself
// as not configured.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewClient creates an SMS gateway client, or nil when no gateway is set up.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:  cfg.GetSMSGatewayKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// IsConfigured reports whether the client can deliver SMS.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

// Send delivers a text message to the given phone number.
func (c *Client) Send(ctx context.Context, phoneNumber, message string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("sms gateway not configured")
	}

	payload := sendRequest{
		To:      phone.NormalizeE164(phoneNumber),
		Message: message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "to", payload.To)
	return nil
}

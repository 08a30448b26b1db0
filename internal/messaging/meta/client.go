// Package meta delivers outbound Instagram and Facebook messages through the
// Meta Graph send API, using the tenant's page access token.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"

	"golang.org/x/time/rate"
)

// sendRate caps Graph API sends per process. Meta throttles per app; staying
// well under the platform limit avoids error-code 613 retry loops.
const sendRate = 10

// Client talks to the Meta Graph API. A nil Client is valid and reports
// itself as not configured (sandbox mode: sends are diverted to the outbox).
type Client struct {
	graphURL string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

type sendRequest struct {
	Recipient recipient `json:"recipient"`
	Message   message   `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type message struct {
	Text string `json:"text"`
}

// NewClient creates a Graph API client, or nil when the platform app is not
// configured.
func NewClient(cfg config.MetaConfig, log *logger.Logger) *Client {
	if cfg.GetMetaAppSecret() == "" {
		return nil
	}
	return &Client{
		graphURL: strings.TrimRight(cfg.GetMetaGraphURL(), "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(sendRate), sendRate),
		log:      log,
	}
}

// IsConfigured reports whether the client can reach the Graph API.
func (c *Client) IsConfigured() bool {
	return c != nil && c.graphURL != ""
}

// SendText delivers a text message to a platform user on behalf of a page and
// returns the provider message id.
func (c *Client) SendText(ctx context.Context, pageToken, recipientID, text string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("meta client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("meta send throttled: %w", err)
	}

	payload := sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   message{Text: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal meta payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphURL, url.QueryEscape(pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("meta request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("meta graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// The send succeeded; a malformed body only costs us the id.
		c.log.Warn("meta response not parseable", "error", err)
	}

	c.log.Info("meta message sent", "recipient", recipientID, "messageId", result.MessageID)
	return result.MessageID, nil
}

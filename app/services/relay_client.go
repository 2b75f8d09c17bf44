package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// relayRequest is the JSON body posted to a delivery relay
type relayRequest struct {
	To          string `json:"to"`
	From        string `json:"from"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
}

// relayResponse is the relay answer; id is the provider message id
type relayResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// relayClient posts one message per request to a provider relay
type relayClient struct {
	url    string
	apiKey string
	client *http.Client
}

func newRelayClient(url, apiKey string, timeout time.Duration) *relayClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &relayClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *relayClient) post(ctx context.Context, payload relayRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal relay request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send relay request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("relay rejected message to %s: status %d: %s", payload.To, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out relayResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("failed to decode relay response: %w", err)
		}
	}
	if out.Error != "" {
		return "", fmt.Errorf("relay rejected message to %s: %s", payload.To, out.Error)
	}
	return out.ID, nil
}

// Package notify calls the outbound notification function that delivers
// welcome emails to newly provisioned clients.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request is the notification function payload.
type Request struct {
	Email          string         `json:"email"`
	FullName       string         `json:"fullName"`
	Password       string         `json:"password"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// Response is the notification function result.
type Response struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client posts notification requests to the configured endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a notification client. Returns nil when endpoint is
// empty, which callers treat as "notifications disabled".
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		return nil
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one notification and returns the function's response.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if c == nil {
		return &Response{Success: false, Error: "notifications disabled"}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding notification response: %w", err)
	}
	if resp.StatusCode >= 400 && out.Error == "" {
		out.Error = fmt.Sprintf("notification endpoint returned %d", resp.StatusCode)
	}
	return &out, nil
}

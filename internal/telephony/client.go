package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Client is a Gateway backed by the provider's REST control API.
// Call termination is a POST to /calls/{callID} updating the leg status.
type Client struct {
	baseURL   string
	accountID string
	authToken string
	http      *http.Client
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. The default is 10 seconds.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a REST gateway client. accountID and authToken are sent
// as basic auth on every request.
func NewClient(baseURL, accountID, authToken string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("telephony: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("telephony: invalid base URL %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL:   baseURL,
		accountID: accountID,
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type terminateRequest struct {
	Status string `json:"status"`
}

// TerminateCall ends the live call leg for callID. A 404 from the provider
// means the leg is already gone and is treated as success. Each request
// carries a fresh Idempotency-Key so provider-side retries are safe.
func (c *Client) TerminateCall(ctx context.Context, callID string) error {
	if callID == "" {
		return fmt.Errorf("telephony: call ID is required")
	}

	body, err := json.Marshal(terminateRequest{Status: "completed"})
	if err != nil {
		return fmt.Errorf("telephony: encode terminate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calls/%s", c.baseURL, url.PathEscape(callID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telephony: build terminate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	req.SetBasicAuth(c.accountID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: terminate call %s: %w", callID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// Leg already ended or never existed; nothing left to terminate.
		return nil
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telephony: terminate call %s: status %d: %s", callID, resp.StatusCode, detail)
	}
}

// Ping probes the control API root for reachability, for readiness checks.
// Any response below 500 counts as reachable; some providers answer the API
// root with a 4xx for authenticated accounts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("telephony: build ping request: %w", err)
	}
	req.SetBasicAuth(c.accountID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("telephony: ping: status %d", resp.StatusCode)
	}
	return nil
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)

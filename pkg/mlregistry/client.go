package mlregistry

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client is a thin HTTP client for the model registry health surface.
type Client struct {
	healthURL  string
	httpClient *http.Client
}

// NewClient builds a registry client whose requests are bounded by timeout.
func NewClient(healthURL string, timeout time.Duration) *Client {
	return &Client{
		healthURL:  healthURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping performs one GET against the registry health URL and returns the
// HTTP status code. A transport-level failure returns a non-nil error.
func (c *Client) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create registry request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// ABOUTME: Health and status calls, including polling until the extension attaches

package client

import (
	"context"
	"time"

	"github.com/2389/dom-relay/internal/gateway"
)

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*gateway.HealthResponse, error) {
	var h gateway.HealthResponse
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (*gateway.StatusResponse, error) {
	var st gateway.StatusResponse
	if err := c.getJSON(ctx, "/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// WaitForExtension polls /health every interval until an extension is
// attached or ctx ends. Unreachable relays are retried as well.
func (c *Client) WaitForExtension(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if h, err := c.Health(ctx); err == nil && h.ExtensionConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ABOUTME: Browser action calls: Execute plus Read, Write and Click helpers
// ABOUTME: Supports per-request timeouts and Idempotency-Key retries

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/dom-relay/internal/gateway"
	"github.com/2389/dom-relay/internal/relay"
)

// ExecuteOptions are optional per-request settings.
type ExecuteOptions struct {
	// Timeout overrides the relay's default request timeout.
	Timeout time.Duration
	// IdempotencyKey makes retries of the same call return the first result.
	IdempotencyKey string
}

// Execute runs one action. It returns the relay's result for every request
// the relay accepted or rejected as invalid; err is set only when no result
// was produced.
func (c *Client) Execute(ctx context.Context, req relay.ActionRequest, opts ExecuteOptions) (*relay.Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = req.Timeout
	}
	body := gateway.ExecuteRequest{
		Action:   req.Action,
		Selector: req.Selector,
		Value:    req.Value,
		URL:      req.URL,
		Timeout:  timeout.Milliseconds(),
	}

	var header http.Header
	if opts.IdempotencyKey != "" {
		header = http.Header{gateway.IdempotencyHeader: []string{opts.IdempotencyKey}}
	}

	resp, err := c.do(ctx, http.MethodPost, "/execute", body, header, http.StatusOK, http.StatusBadRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res relay.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding execute response: %w", err)
	}
	return &res, nil
}

// Read returns the value or text of the element matching selector.
func (c *Client) Read(ctx context.Context, selector, url string) (*relay.Result, error) {
	return c.Execute(ctx, relay.ActionRequest{Action: relay.ActionRead, Selector: selector, URL: url}, ExecuteOptions{})
}

// Write sets the value of the element matching selector.
func (c *Client) Write(ctx context.Context, selector, value, url string) (*relay.Result, error) {
	return c.Execute(ctx, relay.ActionRequest{Action: relay.ActionWrite, Selector: selector, Value: &value, URL: url}, ExecuteOptions{})
}

// Click clicks the element matching selector.
func (c *Client) Click(ctx context.Context, selector, url string) (*relay.Result, error) {
	return c.Execute(ctx, relay.ActionRequest{Action: relay.ActionClick, Selector: selector, URL: url}, ExecuteOptions{})
}

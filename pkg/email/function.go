package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FunctionClient posts alert emails to the send-budget-alert function.
type FunctionClient struct {
	url    string
	key    string
	client *http.Client
}

// NewFunctionClient creates a client for the function at url. If key is
// non-empty it is sent as a bearer token.
func NewFunctionClient(url, key string) *FunctionClient {
	return &FunctionClient{
		url: url,
		key: key,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Dispatch sends req and discards the function's answer unless it failed.
func (c *FunctionClient) Dispatch(ctx context.Context, req Request) error {
	_, err := c.Send(ctx, req)
	return err
}

// Send posts req and decodes the function's result.
func (c *FunctionClient) Send(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call email function: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read email function response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("email function returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode email function response: %w", err)
	}
	return &result, nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FunctionClient calls a remote mail function endpoint (POST /functions/v1/send-email).
type FunctionClient struct {
	url    string
	token  string
	client *http.Client
}

func NewFunctionClient(url, token string, timeout time.Duration) *FunctionClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FunctionClient{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

func (c *FunctionClient) Send(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call mail function: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return nil, &DeliveryError{Status: resp.StatusCode, Body: string(raw)}
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode mail function response: %w", err)
	}
	return &res, nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/metrics"
)

type Options struct {
	BaseURL   string
	From      string
	APIKeyEnv string
	Timeout   time.Duration
	// Getenv defaults to os.Getenv. The key is looked up on every Send.
	Getenv func(string) string
}

// Emitter renders a Request and delivers it with one POST to {BaseURL}/emails.
type Emitter struct {
	opts    Options
	client  *http.Client
	metrics *metrics.Metrics
	lg      *zap.SugaredLogger
}

func NewEmitter(opts Options, m *metrics.Metrics, lg *zap.SugaredLogger) *Emitter {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Emitter{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		metrics: m,
		lg:      lg,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (e *Emitter) Send(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, ErrMissingRecipient
	}
	key := e.opts.Getenv(e.opts.APIKeyEnv)
	if key == "" {
		e.metrics.MailDelivered(req.Type, metrics.ResultNoKey)
		return nil, fmt.Errorf("%w: %s is not set", ErrMissingAPIKey, e.opts.APIKeyEnv)
	}

	msg, err := Render(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(resendRequest{
		From:    e.opts.From,
		To:      []string{req.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.metrics.MailDelivered(req.Type, metrics.ResultError)
		return nil, fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		e.metrics.MailDelivered(req.Type, metrics.ResultError)
		return nil, &DeliveryError{Status: resp.StatusCode, Body: string(raw)}
	}

	var rr resendResponse
	_ = json.Unmarshal(raw, &rr)
	e.metrics.MailDelivered(req.Type, metrics.ResultOK)
	e.lg.Infow("email sent", "type", req.Type, "to", req.To, "id", rr.ID)
	return &Result{
		Success:   true,
		Message:   "Email sent successfully",
		Type:      req.Type,
		Recipient: req.To,
		ID:        rr.ID,
	}, nil
}

// Package publish pushes freshly built feed snapshots to external
// consumers: a webhook endpoint for smart-home automations and a Redis
// channel for push-style dashboard clients.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
)

// WebhookPublisher POSTs each snapshot as JSON to a configured URL.
type WebhookPublisher struct {
	client  *http.Client
	url     string
	headers map[string]string
}

// WebhookOption configures WebhookPublisher.
type WebhookOption func(*WebhookPublisher)

// WithClient sets the HTTP client (default: 10s timeout).
func WithClient(c *http.Client) WebhookOption {
	return func(p *WebhookPublisher) {
		p.client = c
	}
}

// WithHeader sets a header sent on every request (e.g. Authorization).
func WithHeader(key, value string) WebhookOption {
	return func(p *WebhookPublisher) {
		if p.headers == nil {
			p.headers = make(map[string]string)
		}
		p.headers[key] = value
	}
}

func NewWebhookPublisher(url string, opts ...WebhookOption) *WebhookPublisher {
	p := &WebhookPublisher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *WebhookPublisher) Publish(ctx context.Context, snapshot domain.FeedSnapshot) error {
	body, err := json.Marshal(snapshotPayload(snapshot))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &publishError{status: resp.StatusCode}
	}
	return nil
}

type publishError struct {
	status int
}

func (e *publishError) Error() string {
	return "webhook endpoint returned non-2xx status"
}

var _ ports.SnapshotPublisher = (*WebhookPublisher)(nil)

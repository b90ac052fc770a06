package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// Notifier delivers error notifications for unclassified failures.
// Delivery is best effort; a failed notification never blocks a response.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification describes one unclassified failure.
type Notification struct {
	Summary       string `json:"summary"`
	Errorcode     string `json:"errorcode"`
	RequestPath   string `json:"request_path"`
	RequestMethod string `json:"request_method"`
	Environment   string `json:"environment"`
	OccurredAt    string `json:"occurred_at"`
}

// WebhookNotifier posts notifications to a configured sink with retries.
type WebhookNotifier struct {
	url         string
	retryClient *retry.Client
}

// NewWebhookNotifier builds a notifier delivering to the given URL using the
// shared-secret auth mode ("none", "simple", or "hmac").
func NewWebhookNotifier(
	url, authMode, authSecret, authHeader string,
	timeout time.Duration,
	maxRetries int,
	retryDelay time.Duration,
) (*WebhookNotifier, error) {
	client, err := httpclient.NewAuthClient(
		authMode,
		authSecret,
		httpclient.WithTimeout(timeout),
		httpclient.WithHeaderName(authHeader),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify client: %w", err)
	}

	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(maxRetries),
		retry.WithInitialRetryDelay(retryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	return &WebhookNotifier{url: url, retryClient: retryClient}, nil
}

// Notify delivers the notification, logging failures instead of returning
// them.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[Notify] failed to marshal notification: %v", err)
		return
	}

	resp, err := w.retryClient.Post(
		ctx,
		w.url,
		retry.WithBody("application/json", bytes.NewBuffer(payload)),
	)
	if err != nil {
		log.Printf("[Notify] delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Notify] sink responded with status %d", resp.StatusCode)
	}
}

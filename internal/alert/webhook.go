package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/retry"
)

const (
	webhookTimeout  = 10 * time.Second
	webhookAttempts = 2
	webhookBackoff  = 2 * time.Second

	// breakerThreshold consecutive delivery failures open the circuit;
	// alerting then degrades to log-only until the webhook recovers.
	breakerThreshold = 3
	breakerCooldown  = 60 * time.Second
)

// WebhookChannel POSTs alert payloads to an HTTP endpoint. A circuit
// breaker sheds traffic to a persistently failing webhook instead of
// stalling every run behind its timeouts.
type WebhookChannel struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewWebhook creates a webhook channel for url.
func NewWebhook(url string, log *zap.Logger) *WebhookChannel {
	if log == nil {
		log = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:    "alert-webhook",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("webhook circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &WebhookChannel{
		url:     url,
		client:  &http.Client{Timeout: webhookTimeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Name returns "webhook".
func (c *WebhookChannel) Name() string { return "webhook" }

// State exposes the breaker state for status output.
func (c *WebhookChannel) State() string {
	return c.breaker.State().String()
}

// Send delivers the event, retrying once on a transient failure. When the
// breaker is open the send fails fast.
func (c *WebhookChannel) Send(ctx context.Context, e Event) error {
	if c.url == "" {
		return fmt.Errorf("alert: webhook URL not configured")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("alert: marshal payload: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		err := retry.Do(ctx, webhookAttempts, webhookBackoff, func(ctx context.Context) error {
			if err := c.post(ctx, payload); err != nil {
				if retry.Classify(err) == retry.NonRetriable {
					return retry.Permanent(err)
				}
				return err
			}
			return nil
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("alert: webhook delivery: %w", err)
	}
	return nil
}

func (c *WebhookChannel) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered HTTP %d", resp.StatusCode)
	}
	return nil
}

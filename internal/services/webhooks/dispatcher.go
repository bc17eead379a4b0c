// Package webhooks delivers job lifecycle events to registered callback
// URLs. Delivery is best-effort: failures are logged and never propagate
// back to the publisher.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

const defaultRetryDelay = time.Second

// allEventTypes is everything the dispatcher listens for.
var allEventTypes = []interfaces.EventType{
	interfaces.EventJobCreated,
	interfaces.EventJobStarted,
	interfaces.EventJobCompleted,
	interfaces.EventJobFailed,
	interfaces.EventJobCancelled,
	interfaces.EventPageScraped,
}

// deliveryPayload is the body POSTed to webhook endpoints.
type deliveryPayload struct {
	Event     string                 `json:"event"`
	JobID     string                 `json:"job_id"`
	ConfigID  string                 `json:"config_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Dispatcher fans job lifecycle events out to the webhook endpoints
// registered on the owning scraper config.
type Dispatcher struct {
	store       interfaces.WebhookStore
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	logger      arbor.ILogger
}

func NewDispatcher(cfg common.WebhookConfig, store interfaces.WebhookStore, logger arbor.ILogger) *Dispatcher {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := time.Duration(cfg.DeliveryTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		store:       store,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
}

// Register subscribes the dispatcher to every job lifecycle event type.
func (d *Dispatcher) Register(events interfaces.EventService) error {
	for _, eventType := range allEventTypes {
		if err := events.Subscribe(eventType, d.handleEvent); err != nil {
			return err
		}
	}

	d.logger.Info().
		Int("event_types", len(allEventTypes)).
		Int("max_attempts", d.maxAttempts).
		Msg("Webhook dispatcher registered")

	return nil
}

// handleEvent looks up the endpoints subscribed to the event on the owning
// config and delivers to each in turn. It always returns nil; webhook
// problems must not surface as publisher errors.
func (d *Dispatcher) handleEvent(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.JobEventPayload)
	if !ok || payload.ConfigID == "" {
		return nil
	}

	hooks, err := d.store.ListActiveForEvent(ctx, payload.ConfigID, string(event.Type))
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("config_id", payload.ConfigID).
			Str("event_type", string(event.Type)).
			Msg("Failed to load webhooks for event")
		return nil
	}

	for _, hook := range hooks {
		d.deliver(ctx, hook, event.Type, payload)
	}

	return nil
}

// deliver POSTs the event to one endpoint, retrying transient failures with
// a linear backoff.
func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, eventType interfaces.EventType, payload interfaces.JobEventPayload) {
	body, err := json.Marshal(deliveryPayload{
		Event:     string(eventType),
		JobID:     payload.JobID,
		ConfigID:  payload.ConfigID,
		Timestamp: time.Now().UTC(),
		Data:      payload.Data,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("webhook_id", hook.ID).Msg("Failed to encode webhook payload")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay * time.Duration(attempt-1)):
			}
		}

		if err := d.post(ctx, hook.URL, body); err != nil {
			lastErr = err
			d.logger.Warn().
				Err(err).
				Str("webhook_id", hook.ID).
				Str("url", hook.URL).
				Int("attempt", attempt).
				Msg("Webhook delivery attempt failed")
			continue
		}

		d.logger.Debug().
			Str("webhook_id", hook.ID).
			Str("url", hook.URL).
			Str("event_type", string(eventType)).
			Str("job_id", payload.JobID).
			Msg("Webhook delivered")
		return
	}

	d.logger.Error().
		Err(lastErr).
		Str("webhook_id", hook.ID).
		Str("url", hook.URL).
		Int("attempts", d.maxAttempts).
		Msg("Webhook delivery gave up")
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return common.ExternalServicef("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

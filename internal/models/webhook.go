package models

import "time"

// Webhook event names published by the worker and scheduler.
const (
	EventJobCreated   = "job.created"
	EventJobStarted   = "job.started"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
	EventJobCancelled = "job.cancelled"
	EventPageScraped  = "page.scraped"
)

// Webhook is a registered callback URL for job lifecycle events.
type Webhook struct {
	ID        string    `json:"id"`
	ConfigID  string    `json:"config_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWebhook builds an active webhook for a config.
func NewWebhook(id, configID, url string, events []string) *Webhook {
	now := time.Now().UTC()
	return &Webhook{
		ID:        id,
		ConfigID:  configID,
		URL:       url,
		Events:    events,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubscribesTo reports whether the webhook wants the given event. An empty
// event list subscribes to everything.
func (w *Webhook) SubscribesTo(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

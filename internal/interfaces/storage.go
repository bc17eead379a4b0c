package interfaces

import (
	"context"

	"github.com/fortai-labs/firmata/internal/models"
)

// ListOptions narrows list queries. Zero values mean "no filter"; Limit 0
// falls back to the store default.
type ListOptions struct {
	Limit    int
	Offset   int
	Status   string
	ConfigID string
}

// ConfigStore persists scraper configurations.
type ConfigStore interface {
	Create(ctx context.Context, config *models.ScraperConfig) error
	Get(ctx context.Context, id string) (*models.ScraperConfig, error)
	List(ctx context.Context, limit, offset int) ([]*models.ScraperConfig, error)
	ListActiveScheduled(ctx context.Context) ([]*models.ScraperConfig, error)
	Update(ctx context.Context, config *models.ScraperConfig) error
	Delete(ctx context.Context, id string) error
}

// JobStore persists jobs and their lifecycle transitions.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, opts *ListOptions) ([]*models.Job, error)
	Count(ctx context.Context, opts *ListOptions) (int, error)
	Update(ctx context.Context, job *models.Job) error

	// GetStatus reads only the status column; the worker polls it between
	// frontier iterations to observe cancel requests.
	GetStatus(ctx context.Context, id string) (models.JobStatus, error)

	// LatestFor returns the most recently created job for a config, or nil
	// when none exists. The scheduler derives its reference time from it.
	LatestFor(ctx context.Context, configID string) (*models.Job, error)
}

// PageStore persists fetched pages.
type PageStore interface {
	Create(ctx context.Context, page *models.Page) error
	Get(ctx context.Context, id string) (*models.Page, error)
	ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*models.Page, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// WebhookStore persists webhook registrations.
type WebhookStore interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	Get(ctx context.Context, id string) (*models.Webhook, error)
	ListByConfig(ctx context.Context, configID string) ([]*models.Webhook, error)
	ListActiveForEvent(ctx context.Context, configID, event string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, id string) error
}

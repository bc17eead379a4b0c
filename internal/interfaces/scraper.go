package interfaces

import (
	"context"

	"github.com/fortai-labs/firmata/internal/models"
)

// ScraperService is the single entry point for config management and job
// creation. The REST API, the scheduler, and manual triggers all mint jobs
// through the same CreateJob path.
type ScraperService interface {
	CreateConfig(ctx context.Context, config *models.ScraperConfig) error
	GetConfig(ctx context.Context, id string) (*models.ScraperConfig, error)
	ListConfigs(ctx context.Context, limit, offset int) ([]*models.ScraperConfig, error)
	UpdateConfig(ctx context.Context, config *models.ScraperConfig) error
	DeleteConfig(ctx context.Context, id string) error

	CreateJob(ctx context.Context, configID string) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CancelJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *ListOptions) ([]*models.Job, int, error)
}

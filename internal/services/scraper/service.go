// Package scraper is the application service for configs and jobs. Every
// job, whether created through the API, the scheduler, or a manual trigger,
// is minted through the same CreateJob path.
package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

type Service struct {
	configs   interfaces.ConfigStore
	jobs      interfaces.JobStore
	queue     interfaces.JobQueue
	events    interfaces.EventService
	queueName string
	logger    arbor.ILogger
}

var _ interfaces.ScraperService = (*Service)(nil)

func NewService(configs interfaces.ConfigStore, jobs interfaces.JobStore, queue interfaces.JobQueue, events interfaces.EventService, queueName string, logger arbor.ILogger) *Service {
	return &Service{
		configs:   configs,
		jobs:      jobs,
		queue:     queue,
		events:    events,
		queueName: queueName,
		logger:    logger,
	}
}

// CreateConfig validates and stores a new config, assigning its identity.
func (s *Service) CreateConfig(ctx context.Context, config *models.ScraperConfig) error {
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	config.CreatedAt = now
	config.UpdatedAt = now

	if err := s.validateConfig(config); err != nil {
		return err
	}
	if err := s.configs.Create(ctx, config); err != nil {
		return err
	}

	s.logger.Info().
		Str("config_id", config.ID).
		Str("name", config.Name).
		Str("base_url", config.BaseURL).
		Msg("Scraper config created")

	return nil
}

func (s *Service) GetConfig(ctx context.Context, id string) (*models.ScraperConfig, error) {
	return s.configs.Get(ctx, id)
}

func (s *Service) ListConfigs(ctx context.Context, limit, offset int) ([]*models.ScraperConfig, error) {
	return s.configs.List(ctx, limit, offset)
}

// UpdateConfig validates and persists changes to an existing config. Edits
// apply to the next job; running jobs keep the config they loaded.
func (s *Service) UpdateConfig(ctx context.Context, config *models.ScraperConfig) error {
	config.UpdatedAt = time.Now().UTC()

	if err := s.validateConfig(config); err != nil {
		return err
	}
	if err := s.configs.Update(ctx, config); err != nil {
		return err
	}

	s.logger.Info().
		Str("config_id", config.ID).
		Str("name", config.Name).
		Msg("Scraper config updated")

	return nil
}

func (s *Service) DeleteConfig(ctx context.Context, id string) error {
	if err := s.configs.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("config_id", id).Msg("Scraper config deleted")
	return nil
}

// CreateJob mints a pending job for an active config and hands it to the
// queue. The row is written before the queue push; if the push fails the job
// is marked failed so no pending row is left stranded.
func (s *Service) CreateJob(ctx context.Context, configID string) (*models.Job, error) {
	config, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	if !config.Active {
		return nil, common.InvalidInputf("config is not active: %s", configID)
	}

	job := models.NewJob(uuid.New().String(), configID)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	payload, err := models.NewJobPayload(job.ID).Encode()
	if err != nil {
		return nil, s.failUnqueued(ctx, job, err)
	}
	if _, err := s.queue.Enqueue(ctx, s.queueName, payload); err != nil {
		return nil, s.failUnqueued(ctx, job, err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("config_id", configID).
		Str("queue", s.queueName).
		Msg("Job created and enqueued")

	s.publishJobEvent(ctx, interfaces.EventJobCreated, job)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.jobs.Get(ctx, id)
}

// CancelJob records a cancel request for a pending or running job. The
// cancelled transition is written here; workers observe it through status
// polls and stop without writing the row again.
func (s *Service) CancelJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanCancel() {
		return nil, common.InvalidInputf("job cannot be cancelled in status %s: %s", job.Status, id)
	}

	job.Cancel()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("config_id", job.ConfigID).
		Msg("Job cancelled")

	s.publishJobEvent(ctx, interfaces.EventJobCancelled, job)

	return job, nil
}

// ListJobs returns one page of jobs plus the total count for the filters.
func (s *Service) ListJobs(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, int, error) {
	jobs, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.jobs.Count(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *Service) validateConfig(config *models.ScraperConfig) error {
	if err := config.Validate(); err != nil {
		return common.InvalidInputf("invalid config: %v", err)
	}
	if config.Schedule != nil && *config.Schedule != "" {
		if err := common.ValidateCronSchedule(*config.Schedule); err != nil {
			return common.InvalidInputf("invalid schedule: %v", err)
		}
	}
	return nil
}

// failUnqueued marks a freshly created job failed when it never reached the
// queue, so the row does not sit pending forever.
func (s *Service) failUnqueued(ctx context.Context, job *models.Job, cause error) error {
	job.Fail("enqueue failed: " + cause.Error())
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to mark unqueued job as failed")
	}
	return common.QueueError(cause)
}

func (s *Service) publishJobEvent(ctx context.Context, eventType interfaces.EventType, job *models.Job) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, interfaces.Event{
		Type: eventType,
		Payload: interfaces.JobEventPayload{
			JobID:    job.ID,
			ConfigID: job.ConfigID,
			Status:   string(job.Status),
		},
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_type", string(eventType)).
			Str("job_id", job.ID).
			Msg("Failed to publish job event")
	}
}

// Package scheduler mints jobs for active configs whose cron schedule has
// come due. Deployments run a single scheduler; two instances evaluating
// the same configs would mint duplicate jobs.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

type Service struct {
	configs  interfaces.ConfigStore
	jobs     interfaces.JobStore
	scraper  interfaces.ScraperService
	interval time.Duration
	parser   cron.Parser
	logger   arbor.ILogger

	// now is swapped out in tests.
	now func() time.Time

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(cfg common.SchedulerConfig, configs interfaces.ConfigStore, jobs interfaces.JobStore, scraper interfaces.ScraperService, logger arbor.ILogger) *Service {
	interval := time.Duration(cfg.CheckIntervalSeconds) * time.Second
	if interval < time.Second {
		interval = time.Minute
	}

	return &Service{
		configs:  configs,
		jobs:     jobs,
		scraper:  scraper,
		interval: interval,
		parser:   common.CronParser(),
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start launches the tick loop.
func (s *Service) Start() {
	s.running.Store(true)
	s.wg.Add(1)
	go s.run()

	s.logger.Info().
		Dur("check_interval", s.interval).
		Msg("Scheduler started")
}

// Stop halts the loop after the current tick finishes.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.running.Store(false)
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the tick loop is active.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// tick evaluates every active config that carries a schedule.
func (s *Service) tick(ctx context.Context) {
	configs, err := s.configs.ListActiveScheduled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list scheduled configs")
		return
	}

	for _, config := range configs {
		select {
		case <-s.stop:
			return
		default:
		}
		s.evaluate(ctx, config)
	}
}

// evaluate mints a job for one config when its next firing after the
// reference time has passed. A config whose latest job is still in flight
// is left alone.
func (s *Service) evaluate(ctx context.Context, config *models.ScraperConfig) {
	if config.Schedule == nil || *config.Schedule == "" {
		return
	}

	schedule, err := s.parser.Parse(*config.Schedule)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("config_id", config.ID).
			Str("name", config.Name).
			Str("schedule", *config.Schedule).
			Msg("Invalid cron expression, skipping config")
		return
	}

	latest, err := s.jobs.LatestFor(ctx, config.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("config_id", config.ID).
			Msg("Failed to load latest job for config")
		return
	}
	if latest != nil && !latest.IsTerminal() {
		return
	}

	reference := config.CreatedAt
	if latest != nil && latest.CompletedAt != nil {
		reference = *latest.CompletedAt
	}

	next := schedule.Next(reference)
	if next.After(s.now()) {
		return
	}

	job, err := s.scraper.CreateJob(ctx, config.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("config_id", config.ID).
			Msg("Failed to create scheduled job")
		return
	}

	s.logger.Info().
		Str("config_id", config.ID).
		Str("name", config.Name).
		Str("job_id", job.ID).
		Str("schedule", *config.Schedule).
		Str("due_at", next.Format(time.RFC3339)).
		Msg("Scheduled job created")
}

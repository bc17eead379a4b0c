package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/handlers"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/queue"
	"github.com/fortai-labs/firmata/internal/queue/workers"
	"github.com/fortai-labs/firmata/internal/services/crawler"
	"github.com/fortai-labs/firmata/internal/services/events"
	"github.com/fortai-labs/firmata/internal/services/markdown"
	"github.com/fortai-labs/firmata/internal/services/scheduler"
	"github.com/fortai-labs/firmata/internal/services/scraper"
	"github.com/fortai-labs/firmata/internal/services/webhooks"
	"github.com/fortai-labs/firmata/internal/storage/objectstore"
	"github.com/fortai-labs/firmata/internal/storage/postgres"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB           *postgres.Store
	ConfigStore  interfaces.ConfigStore
	JobStore     interfaces.JobStore
	PageStore    interfaces.PageStore
	WebhookStore interfaces.WebhookStore
	ObjectStore  interfaces.ObjectStore

	// Job queue (concrete type, the promoter is not part of the interface)
	Queue *queue.RedisQueue

	// Services
	EventService      interfaces.EventService
	MarkdownConverter interfaces.MarkdownConverter
	CrawlerService    *crawler.Service
	ScraperService    interfaces.ScraperService
	SchedulerService  *scheduler.Service
	WebhookDispatcher *webhooks.Dispatcher
	Workers           []*workers.ScrapeWorker

	// HTTP handlers
	ConfigHandler  *handlers.ConfigHandler
	JobHandler     *handlers.JobHandler
	PageHandler    *handlers.PageHandler
	WebhookHandler *handlers.WebhookHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()
	app.start()

	logger.Info().
		Bool("worker_enabled", cfg.Worker.Enabled).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("webhooks_enabled", cfg.Webhooks.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage connects Postgres and the object store and applies the schema
func (a *App) initStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, a.Config.Database.URL, int32(a.Config.Database.MaxConnections), a.Logger)
	if err != nil {
		return err
	}
	a.DB = db

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	a.ConfigStore = postgres.NewConfigStore(db)
	a.JobStore = postgres.NewJobStore(db)
	a.PageStore = postgres.NewPageStore(db)
	a.WebhookStore = postgres.NewWebhookStore(db)

	objects, err := objectstore.New(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return err
	}
	a.ObjectStore = objects

	return nil
}

// initServices wires the queue, converter, event bus and domain services
func (a *App) initServices() error {
	q, err := queue.NewRedisQueue(a.Config.Redis.URL, a.Config.VisibilityTimeout(), a.Config.PollTimeout(), a.Logger)
	if err != nil {
		return err
	}
	a.Queue = q

	converter, err := markdown.New(a.Config.Markdown, a.Logger)
	if err != nil {
		return err
	}
	a.MarkdownConverter = converter

	a.EventService = events.NewService(a.Logger)

	a.CrawlerService = crawler.NewService(crawler.Config{
		MaxConcurrentRequests: a.Config.Crawler.MaxConcurrentRequests,
		DelayBetweenRequests:  a.Config.Crawler.RequestDelay(),
		MaxRetries:            a.Config.Crawler.MaxRetries,
		UserAgent:             a.Config.Crawler.UserAgent,
		RequestTimeout:        a.Config.Crawler.RequestTimeout(),
		RespectRobotsTxt:      a.Config.Crawler.RespectRobotsTxt,
		MaxPageSizeBytes:      a.Config.Crawler.MaxPageSizeBytes,
		RobotsCacheTTL:        a.Config.Crawler.RobotsCacheTTL(),
	}, a.Logger)

	queueName := a.Config.Redis.JobQueueName
	a.ScraperService = scraper.NewService(a.ConfigStore, a.JobStore, q, a.EventService, queueName, a.Logger)
	a.SchedulerService = scheduler.NewService(a.Config.Scheduler, a.ConfigStore, a.JobStore, a.ScraperService, a.Logger)

	if a.Config.Webhooks.Enabled {
		a.WebhookDispatcher = webhooks.NewDispatcher(a.Config.Webhooks, a.WebhookStore, a.Logger)
		if err := a.WebhookDispatcher.Register(a.EventService); err != nil {
			return err
		}
	}

	if a.Config.Worker.Enabled {
		workerCount := a.Config.Worker.Count
		if workerCount < 1 {
			workerCount = 1
		}
		for i := 0; i < workerCount; i++ {
			a.Workers = append(a.Workers, workers.NewScrapeWorker(
				q,
				a.JobStore,
				a.ConfigStore,
				a.PageStore,
				a.ObjectStore,
				a.MarkdownConverter,
				a.CrawlerService,
				a.EventService,
				queueName,
				a.Logger,
			))
		}
	}

	return nil
}

// initHandlers builds the HTTP handler set
func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	a.ConfigHandler = handlers.NewConfigHandler(a.ScraperService, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.ScraperService, a.PageStore, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.PageStore, a.ObjectStore, a.Logger)
	a.WebhookHandler = handlers.NewWebhookHandler(a.WebhookStore, a.ScraperService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(
		a.DB,
		a.Queue,
		a.ObjectStore,
		a.SchedulerService,
		a.Config.Redis.JobQueueName,
		len(a.Workers),
		a.Logger,
	)
}

// start launches the background loops once every component is wired
func (a *App) start() {
	a.Queue.StartPromoter(a.Config.Redis.JobQueueName, queue.PromoteInterval)

	for _, w := range a.Workers {
		w.Start()
	}
	if len(a.Workers) > 0 {
		a.Logger.Info().Int("count", len(a.Workers)).Msg("Scrape workers started")
	}

	if a.Config.Scheduler.Enabled {
		a.SchedulerService.Start()
	}
}

// Close gracefully shuts down all application components
func (a *App) Close() error {
	// Stop producers before consumers so nothing is minted mid-shutdown
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	for _, w := range a.Workers {
		w.Stop()
	}
	if len(a.Workers) > 0 {
		a.Logger.Info().Msg("Scrape workers stopped")
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.MarkdownConverter != nil {
		if err := a.MarkdownConverter.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close markdown converter")
		}
	}

	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close job queue")
		}
	}

	if a.DB != nil {
		a.DB.Close()
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}

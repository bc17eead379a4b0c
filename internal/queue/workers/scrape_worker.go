package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
	"github.com/fortai-labs/firmata/internal/services/crawler"
)

const (
	// dequeueBackoff spaces out retries when the queue itself is failing.
	dequeueBackoff = 5 * time.Second

	// completeRetryDelay is how long to wait before the single retry of a
	// failed reservation release.
	completeRetryDelay = 30 * time.Second
)

// frontierEntry is one URL waiting to be fetched within a job's traversal.
type frontierEntry struct {
	url    string
	depth  int
	parent *string
}

// ScrapeWorker consumes scrape jobs from the queue and drives each crawl end
// to end: claim the job, walk the link frontier depth-first, persist pages
// and artifacts, and leave the job in a terminal state.
//
// A worker processes one job at a time. Run several workers for parallelism;
// the queue hand-off guarantees each job lands on exactly one of them.
type ScrapeWorker struct {
	queue    interfaces.JobQueue
	jobs     interfaces.JobStore
	configs  interfaces.ConfigStore
	pages    interfaces.PageStore
	objects  interfaces.ObjectStore
	markdown interfaces.MarkdownConverter
	crawler  interfaces.Crawler
	events   interfaces.EventService
	logger   arbor.ILogger

	queueName string
	workerID  string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScrapeWorker wires a worker against its collaborators. Each worker gets
// a unique id that is recorded on the jobs it claims.
func NewScrapeWorker(
	queue interfaces.JobQueue,
	jobs interfaces.JobStore,
	configs interfaces.ConfigStore,
	pages interfaces.PageStore,
	objects interfaces.ObjectStore,
	markdown interfaces.MarkdownConverter,
	crawlService interfaces.Crawler,
	events interfaces.EventService,
	queueName string,
	logger arbor.ILogger,
) *ScrapeWorker {
	return &ScrapeWorker{
		queue:     queue,
		jobs:      jobs,
		configs:   configs,
		pages:     pages,
		objects:   objects,
		markdown:  markdown,
		crawler:   crawlService,
		events:    events,
		queueName: queueName,
		workerID:  fmt.Sprintf("worker-%s", uuid.New().String()),
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// WorkerID returns the identifier recorded on claimed jobs.
func (w *ScrapeWorker) WorkerID() string {
	return w.workerID
}

// Start launches the dequeue loop in its own goroutine.
func (w *ScrapeWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals the loop to exit and waits for the in-flight job to finish.
func (w *ScrapeWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	w.wg.Wait()
}

func (w *ScrapeWorker) run() {
	defer w.wg.Done()

	// The dequeue context is cancelled on Stop so a blocking pop returns
	// promptly. Job processing keeps its own context: an in-flight job runs
	// to completion.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stop
		cancel()
	}()

	w.logger.Info().
		Str("worker_id", w.workerID).
		Str("queue", w.queueName).
		Msg("Scrape worker started")
	defer func() {
		w.logger.Info().
			Str("worker_id", w.workerID).
			Msg("Scrape worker stopped")
	}()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		reservation, err := w.queue.Dequeue(ctx, w.queueName)
		if err != nil {
			if errors.Is(err, models.ErrNoMessage) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().
				Str("worker_id", w.workerID).
				Err(err).
				Msg("Dequeue failed")
			select {
			case <-w.stop:
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}

		w.handleReservation(context.Background(), reservation)
	}
}

// handleReservation resolves one queue delivery. Payloads that cannot be
// tied to a known job move to the failed queue; everything else ends with
// the job in a terminal state and the reservation released.
func (w *ScrapeWorker) handleReservation(ctx context.Context, reservation *interfaces.Reservation) {
	payload, err := models.DecodeJobPayload(reservation.Payload)
	if err != nil {
		w.logger.Error().
			Str("worker_id", w.workerID).
			Str("payload", reservation.Payload).
			Err(err).
			Msg("Undecodable payload, moving to failed queue")
		w.failReservation(ctx, reservation.ID, err)
		return
	}

	w.logger.Info().
		Str("worker_id", w.workerID).
		Str("job_id", payload.JobID).
		Msg("Picked up job")

	job, err := w.jobs.Get(ctx, payload.JobID)
	if err != nil {
		// Without the row the job cannot be advanced; park the payload
		// for redrive.
		w.logger.Error().
			Str("job_id", payload.JobID).
			Err(err).
			Msg("Failed to load job, moving payload to failed queue")
		w.failReservation(ctx, reservation.ID, err)
		return
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Error().
			Str("job_id", job.ID).
			Err(err).
			Msg("Job processing failed")
		w.markJobFailed(ctx, job.ID, err)
	}

	w.completeReservation(ctx, job.ID, reservation.ID)
}

// processJob runs the crawl for a claimed job. A returned error means the
// job itself could not be advanced and should be marked failed; per-URL
// problems are recorded as error pages and never surface here.
func (w *ScrapeWorker) processJob(ctx context.Context, job *models.Job) error {
	// Re-deliveries of finished jobs are dropped.
	if job.IsTerminal() {
		w.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("Job already terminal, dropping re-delivery")
		return nil
	}

	config, err := w.configs.Get(ctx, job.ConfigID)
	if err != nil {
		return fmt.Errorf("load config %s: %w", job.ConfigID, err)
	}

	job.Start(w.workerID)
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	w.publishJobEvent(ctx, interfaces.EventJobStarted, job, nil)

	w.logger.Info().
		Str("job_id", job.ID).
		Str("config_id", config.ID).
		Str("base_url", config.BaseURL).
		Int("max_depth", config.MaxDepth).
		Msg("Starting crawl")

	started := time.Now()
	cancelled, err := w.crawl(ctx, job, config)
	if err != nil {
		return err
	}

	if cancelled {
		w.logger.Info().
			Str("job_id", job.ID).
			Int("pages_crawled", job.PagesCrawled).
			Dur("duration", time.Since(started)).
			Msg("Job cancelled, crawl stopped")
		return nil
	}

	job.Complete()
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	w.logger.Info().
		Str("job_id", job.ID).
		Int("pages_crawled", job.PagesCrawled).
		Int("pages_failed", job.PagesFailed).
		Int("pages_skipped", job.PagesSkipped).
		Dur("duration", time.Since(started)).
		Msg("Job completed")
	w.publishJobEvent(ctx, interfaces.EventJobCompleted, job, nil)
	return nil
}

// crawl walks the link frontier depth-first from the config's base URL.
// It returns true when a cancel request was observed, in which case the
// cancelling side already owns the terminal transition.
func (w *ScrapeWorker) crawl(ctx context.Context, job *models.Job, config *models.ScraperConfig) (bool, error) {
	filter, err := crawler.NewLinkFilter(config.IncludePatterns, config.ExcludePatterns, w.logger)
	if err != nil {
		return false, err
	}

	maxPages := 0
	if config.MaxPagesPerJob != nil {
		maxPages = *config.MaxPagesPerJob
	}

	frontier := []frontierEntry{{url: config.BaseURL, depth: 0}}
	visited := make(map[string]struct{})

	for len(frontier) > 0 {
		// Observe cancel requests between fetches.
		status, err := w.jobs.GetStatus(ctx, job.ID)
		if err != nil {
			w.logger.Warn().
				Str("job_id", job.ID).
				Err(err).
				Msg("Status poll failed")
		} else if status == models.JobStatusCancelled {
			return true, nil
		}

		if maxPages > 0 && job.PagesCrawled >= maxPages {
			w.logger.Info().
				Str("job_id", job.ID).
				Int("pages_crawled", job.PagesCrawled).
				Int("max_pages", maxPages).
				Msg("Max pages limit reached")
			break
		}

		// LIFO pop.
		entry := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		if entry.depth > config.MaxDepth {
			job.PagesSkipped++
			continue
		}

		// Dedupe on the normalized form when the URL parses.
		key := entry.url
		if normalized, err := common.NormalizeURL(entry.url); err == nil {
			key = normalized
		}
		if _, ok := visited[key]; ok {
			job.PagesSkipped++
			continue
		}

		page, links, err := w.crawler.Fetch(ctx, &interfaces.CrawlRequest{
			URL:           entry.url,
			Depth:         entry.depth,
			ParentURL:     entry.parent,
			Filter:        filter,
			UserAgent:     config.UserAgent,
			Headers:       config.Headers,
			RequestDelay:  config.RequestDelay(),
			RespectRobots: config.RespectRobotsTxt,
		})
		if err != nil {
			w.recordFetchFailure(ctx, job, entry, err)
		} else {
			page.JobID = job.ID
			w.persistPage(ctx, job, page)

			// Links found at the depth limit are not followed.
			if entry.depth < config.MaxDepth {
				parent := entry.url
				for _, link := range links {
					frontier = append(frontier, frontierEntry{url: link, depth: entry.depth + 1, parent: &parent})
				}
			}
		}

		visited[key] = struct{}{}
	}

	return false, nil
}

// recordFetchFailure stores an error page for a URL whose fetch failed
// before any response was received.
func (w *ScrapeWorker) recordFetchFailure(ctx context.Context, job *models.Job, entry frontierEntry, fetchErr error) {
	w.logger.Warn().
		Str("job_id", job.ID).
		Str("url", entry.url).
		Err(fetchErr).
		Msg("Fetch failed")

	normalized := entry.url
	if n, err := common.NormalizeURL(entry.url); err == nil {
		normalized = n
	}
	page := models.ErrorPage(job.ID, entry.url, normalized, fetchErr.Error(), entry.depth, entry.parent)
	w.storePage(ctx, job, page)
}

// persistPage uploads the page artifacts, then stores the row. Artifact
// failures degrade the page rather than the job: a page whose HTML cannot
// be uploaded is recorded as an error page, and a page whose markdown
// conversion fails keeps its HTML artifact.
func (w *ScrapeWorker) persistPage(ctx context.Context, job *models.Job, page *models.Page) {
	if !page.HasError() && page.HTMLContent != "" {
		htmlPath, err := w.objects.UploadHTML(ctx, job.ID, page.URL, []byte(page.HTMLContent))
		if err != nil {
			w.logger.Error().
				Str("job_id", job.ID).
				Str("url", page.URL).
				Err(err).
				Msg("Failed to upload HTML")
			msg := fmt.Sprintf("storage error: %v", err)
			page.ErrorMessage = &msg
		} else {
			page.HTMLStoragePath = &htmlPath

			result, err := w.markdown.Convert(ctx, page.HTMLContent, page.URL, nil)
			if err != nil {
				w.logger.Warn().
					Str("job_id", job.ID).
					Str("url", page.URL).
					Err(err).
					Msg("Markdown conversion failed")
			} else {
				mdPath, err := w.objects.UploadMarkdown(ctx, job.ID, page.URL, []byte(result.Markdown))
				if err != nil {
					w.logger.Warn().
						Str("job_id", job.ID).
						Str("url", page.URL).
						Err(err).
						Msg("Failed to upload markdown")
				} else {
					page.MarkdownStoragePath = &mdPath
				}
			}
		}
	}

	w.storePage(ctx, job, page)
}

// storePage inserts the row and advances the job counters. The raw body
// never reaches the database.
func (w *ScrapeWorker) storePage(ctx context.Context, job *models.Job, page *models.Page) {
	page.HTMLContent = ""

	if err := w.pages.Create(ctx, page); err != nil {
		w.logger.Error().
			Str("job_id", job.ID).
			Str("url", page.URL).
			Err(err).
			Msg("Failed to store page")
		return
	}

	job.PagesCrawled++
	if page.HasError() {
		job.PagesFailed++
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error().
			Str("job_id", job.ID).
			Err(err).
			Msg("Failed to update job counters")
	}

	w.publishPageEvent(ctx, job, page)
}

// markJobFailed records a terminal failure on the job row. Already-terminal
// jobs are left alone.
func (w *ScrapeWorker) markJobFailed(ctx context.Context, jobID string, cause error) {
	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		w.logger.Error().
			Str("job_id", jobID).
			Err(err).
			Msg("Cannot load job to mark failed")
		return
	}
	if job.IsTerminal() {
		return
	}

	job.Fail(cause.Error())
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error().
			Str("job_id", jobID).
			Err(err).
			Msg("Cannot mark job failed")
		return
	}
	w.publishJobEvent(ctx, interfaces.EventJobFailed, job, map[string]interface{}{
		"error": cause.Error(),
	})
}

// failReservation parks the payload on the failed queue for post-mortem.
func (w *ScrapeWorker) failReservation(ctx context.Context, reservationID string, cause error) {
	if err := w.queue.Fail(ctx, w.queueName, reservationID, cause.Error()); err != nil {
		w.logger.Error().
			Str("reservation_id", reservationID).
			Err(err).
			Msg("Failed to move payload to failed queue")
	}
}

// completeReservation releases the queue hand-off. The job row is already
// terminal at this point, so on a queue fault one delayed retry is
// scheduled and the entry is otherwise left for the operator reaper.
func (w *ScrapeWorker) completeReservation(ctx context.Context, jobID, reservationID string) {
	err := w.queue.Complete(ctx, w.queueName, reservationID)
	if err == nil {
		return
	}

	w.logger.Error().
		Str("job_id", jobID).
		Str("reservation_id", reservationID).
		Err(err).
		Msg("Failed to complete reservation, retrying once")

	time.AfterFunc(completeRetryDelay, func() {
		retryCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.queue.Complete(retryCtx, w.queueName, reservationID); err != nil {
			w.logger.Error().
				Str("job_id", jobID).
				Str("reservation_id", reservationID).
				Err(err).
				Msg("Reservation completion retry failed")
		}
	})
}

func (w *ScrapeWorker) publishJobEvent(ctx context.Context, eventType interfaces.EventType, job *models.Job, data map[string]interface{}) {
	if w.events == nil {
		return
	}
	event := interfaces.Event{
		Type: eventType,
		Payload: interfaces.JobEventPayload{
			JobID:    job.ID,
			ConfigID: job.ConfigID,
			Status:   string(job.Status),
			Data:     data,
		},
	}
	if err := w.events.Publish(ctx, event); err != nil {
		w.logger.Warn().
			Str("job_id", job.ID).
			Str("event", string(eventType)).
			Err(err).
			Msg("Failed to publish event")
	}
}

func (w *ScrapeWorker) publishPageEvent(ctx context.Context, job *models.Job, page *models.Page) {
	if w.events == nil {
		return
	}
	event := interfaces.Event{
		Type: interfaces.EventPageScraped,
		Payload: interfaces.JobEventPayload{
			JobID:    job.ID,
			ConfigID: job.ConfigID,
			Status:   string(job.Status),
			Data: map[string]interface{}{
				"url":         page.URL,
				"http_status": page.HTTPStatus,
				"depth":       page.Depth,
			},
		},
	}
	if err := w.events.Publish(ctx, event); err != nil {
		w.logger.Warn().
			Str("job_id", job.ID).
			Err(err).
			Msg("Failed to publish page event")
	}
}

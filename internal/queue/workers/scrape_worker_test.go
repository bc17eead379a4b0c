package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

type fakeQueue struct {
	mu           sync.Mutex
	reservations []*interfaces.Reservation
	completed    []string
	failed       []string
	failMessages []string
}

var _ interfaces.JobQueue = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(ctx context.Context, queue, payload string) (string, error) {
	return "", nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, queue string) (*interfaces.Reservation, error) {
	q.mu.Lock()
	if len(q.reservations) > 0 {
		r := q.reservations[0]
		q.reservations = q.reservations[1:]
		q.mu.Unlock()
		return r, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, models.ErrNoMessage
	}
}

func (q *fakeQueue) Complete(ctx context.Context, queue, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, queue, id, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, id)
	q.failMessages = append(q.failMessages, errMsg)
	return nil
}

func (q *fakeQueue) Schedule(ctx context.Context, queue, payload string, delay time.Duration) (string, error) {
	return "", nil
}

func (q *fakeQueue) Length(ctx context.Context, queue string) (int64, error) { return 0, nil }
func (q *fakeQueue) Ping(ctx context.Context) error                          { return nil }

func (q *fakeQueue) completedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.completed...)
}

func (q *fakeQueue) failedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.failed...)
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	// When cancelAfterReads is N > 0, the Nth GetStatus call flips the job
	// to cancelled, simulating a concurrent cancel request.
	cancelAfterReads int
	statusReads      int
}

var _ interfaces.JobStore = (*fakeJobStore)(nil)

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.Job)}
}

func (s *fakeJobStore) Create(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, common.NotFoundf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, error) {
	return nil, nil
}

func (s *fakeJobStore) Count(ctx context.Context, opts *interfaces.ListOptions) (int, error) {
	return 0, nil
}

func (s *fakeJobStore) Update(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) GetStatus(ctx context.Context, id string) (models.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", common.NotFoundf("job %s not found", id)
	}
	s.statusReads++
	if s.cancelAfterReads > 0 && s.statusReads >= s.cancelAfterReads && !job.IsTerminal() {
		job.Cancel()
	}
	return job.Status, nil
}

func (s *fakeJobStore) LatestFor(ctx context.Context, configID string) (*models.Job, error) {
	return nil, nil
}

type fakeConfigStore struct {
	mu      sync.Mutex
	configs map[string]*models.ScraperConfig
}

var _ interfaces.ConfigStore = (*fakeConfigStore)(nil)

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: make(map[string]*models.ScraperConfig)}
}

func (s *fakeConfigStore) Create(ctx context.Context, config *models.ScraperConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *config
	s.configs[config.ID] = &copied
	return nil
}

func (s *fakeConfigStore) Get(ctx context.Context, id string) (*models.ScraperConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.configs[id]
	if !ok {
		return nil, common.NotFoundf("config %s not found", id)
	}
	copied := *config
	return &copied, nil
}

func (s *fakeConfigStore) List(ctx context.Context, limit, offset int) ([]*models.ScraperConfig, error) {
	return nil, nil
}

func (s *fakeConfigStore) ListActiveScheduled(ctx context.Context) ([]*models.ScraperConfig, error) {
	return nil, nil
}

func (s *fakeConfigStore) Update(ctx context.Context, config *models.ScraperConfig) error {
	return nil
}

func (s *fakeConfigStore) Delete(ctx context.Context, id string) error { return nil }

type fakePageStore struct {
	mu    sync.Mutex
	pages []*models.Page
}

var _ interfaces.PageStore = (*fakePageStore)(nil)

func (s *fakePageStore) Create(ctx context.Context, page *models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *page
	s.pages = append(s.pages, &copied)
	return nil
}

func (s *fakePageStore) Get(ctx context.Context, id string) (*models.Page, error) {
	return nil, common.NotFoundf("page %s not found", id)
}

func (s *fakePageStore) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*models.Page, error) {
	return nil, nil
}

func (s *fakePageStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages), nil
}

func (s *fakePageStore) byURL(url string) *models.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.URL == url {
			return p
		}
	}
	return nil
}

func (s *fakePageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	htmlErr error
	mdErr   error
}

var _ interfaces.ObjectStore = (*fakeObjectStore)(nil)

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) UploadHTML(ctx context.Context, jobID, url string, content []byte) (string, error) {
	if s.htmlErr != nil {
		return "", s.htmlErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "html:" + url
	s.objects[path] = append([]byte(nil), content...)
	return path, nil
}

func (s *fakeObjectStore) UploadMarkdown(ctx context.Context, jobID, url string, content []byte) (string, error) {
	if s.mdErr != nil {
		return "", s.mdErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "md:" + url
	s.objects[path] = append([]byte(nil), content...)
	return path, nil
}

func (s *fakeObjectStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, common.NotFoundf("object %s not found", path)
	}
	return data, nil
}

func (s *fakeObjectStore) DeleteObject(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *fakeObjectStore) Ping(ctx context.Context) error { return nil }

func (s *fakeObjectStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeMarkdown struct {
	mu    sync.Mutex
	calls []string
	err   error
}

var _ interfaces.MarkdownConverter = (*fakeMarkdown)(nil)

func (m *fakeMarkdown) Convert(ctx context.Context, htmlContent, url string, metadata map[string]string) (*interfaces.MarkdownResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &interfaces.MarkdownResult{Markdown: "# converted\n"}, nil
}

func (m *fakeMarkdown) Close() error { return nil }

// crawlResult scripts the fake crawler's answer for one URL.
type crawlResult struct {
	links  []string
	status int
	err    error
}

type fakeCrawler struct {
	mu      sync.Mutex
	results map[string]crawlResult
	order   []string
}

var _ interfaces.Crawler = (*fakeCrawler)(nil)

func (c *fakeCrawler) Fetch(ctx context.Context, req *interfaces.CrawlRequest) (*models.Page, []string, error) {
	c.mu.Lock()
	c.order = append(c.order, req.URL)
	result := c.results[req.URL]
	c.mu.Unlock()

	if result.err != nil {
		return nil, nil, result.err
	}

	status := result.status
	if status == 0 {
		status = 200
	}
	normalized, err := common.NormalizeURL(req.URL)
	if err != nil {
		normalized = req.URL
	}
	title := "Title of " + req.URL
	page := &models.Page{
		ID:            uuid.New().String(),
		URL:           req.URL,
		NormalizedURL: normalized,
		HTTPStatus:    status,
		CrawledAt:     time.Now().UTC(),
		Title:         &title,
		Depth:         req.Depth,
		ParentURL:     req.ParentURL,
		HTMLContent:   "<html><body>" + req.URL + "</body></html>",
	}
	if status >= 400 {
		msg := fmt.Sprintf("HTTP error: %d", status)
		page.ErrorMessage = &msg
	}
	return page, result.links, nil
}

func (c *fakeCrawler) fetchOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

var _ interfaces.EventService = (*fakeEvents)(nil)

func (e *fakeEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (e *fakeEvents) Publish(ctx context.Context, event interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return e.Publish(ctx, event)
}

func (e *fakeEvents) Close() error { return nil }

func (e *fakeEvents) types() []interfaces.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]interfaces.EventType, 0, len(e.events))
	for _, ev := range e.events {
		types = append(types, ev.Type)
	}
	return types
}

// workerFixture assembles a worker over in-memory fakes.
type workerFixture struct {
	queue   *fakeQueue
	jobs    *fakeJobStore
	configs *fakeConfigStore
	pages   *fakePageStore
	objects *fakeObjectStore
	md      *fakeMarkdown
	crawler *fakeCrawler
	events  *fakeEvents
	worker  *ScrapeWorker
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		queue:   &fakeQueue{},
		jobs:    newFakeJobStore(),
		configs: newFakeConfigStore(),
		pages:   &fakePageStore{},
		objects: newFakeObjectStore(),
		md:      &fakeMarkdown{},
		crawler: &fakeCrawler{results: make(map[string]crawlResult)},
		events:  &fakeEvents{},
	}
	f.worker = NewScrapeWorker(f.queue, f.jobs, f.configs, f.pages, f.objects, f.md, f.crawler, f.events, "scrape", arbor.NewLogger())
	return f
}

func (f *workerFixture) addJob(t *testing.T, config *models.ScraperConfig) *models.Job {
	t.Helper()
	if err := f.configs.Create(context.Background(), config); err != nil {
		t.Fatalf("Failed to seed config: %v", err)
	}
	job := models.NewJob(uuid.New().String(), config.ID)
	if err := f.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Failed to seed job: %v", err)
	}
	return job
}

func (f *workerFixture) deliver(t *testing.T, jobID string) {
	t.Helper()
	payload, err := models.NewJobPayload(jobID).Encode()
	if err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	f.worker.handleReservation(context.Background(), &interfaces.Reservation{ID: "res-1", Payload: payload})
}

func (f *workerFixture) job(t *testing.T, id string) *models.Job {
	t.Helper()
	job, err := f.jobs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}
	return job
}

func testConfig(baseURL string, maxDepth int) *models.ScraperConfig {
	now := time.Now().UTC()
	return &models.ScraperConfig{
		ID:                    uuid.New().String(),
		Name:                  "worker-test",
		BaseURL:               baseURL,
		MaxDepth:              maxDepth,
		MaxConcurrentRequests: 1,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestScrapeWorker_CrawlsBaseURLOnly(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/a", "https://example.com/b"}}

	f.deliver(t, job.ID)

	order := f.crawler.fetchOrder()
	if len(order) != 1 || order[0] != "https://example.com" {
		t.Errorf("Expected only the base URL to be fetched, got %v", order)
	}

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesCrawled != 1 {
		t.Errorf("Expected 1 page crawled, got %d", got.PagesCrawled)
	}
	if got.PagesFailed != 0 {
		t.Errorf("Expected 0 pages failed, got %d", got.PagesFailed)
	}
	if got.WorkerID == nil || !strings.HasPrefix(*got.WorkerID, "worker-") {
		t.Errorf("Expected worker id on job, got %v", got.WorkerID)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("Expected started and completed timestamps to be set")
	}

	if completed := f.queue.completedIDs(); len(completed) != 1 || completed[0] != "res-1" {
		t.Errorf("Expected reservation res-1 completed, got %v", completed)
	}
}

func TestScrapeWorker_FollowsLinksDepthFirst(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 1)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/a", "https://example.com/b"}}
	f.crawler.results["https://example.com/a"] = crawlResult{links: []string{"https://example.com/c"}}
	f.crawler.results["https://example.com/b"] = crawlResult{}

	f.deliver(t, job.ID)

	// Children are pushed in order and popped LIFO.
	want := []string{"https://example.com", "https://example.com/b", "https://example.com/a"}
	order := f.crawler.fetchOrder()
	if len(order) != len(want) {
		t.Fatalf("Expected fetch order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected fetch %d to be %s, got %s", i, want[i], order[i])
		}
	}

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesCrawled != 3 {
		t.Errorf("Expected 3 pages crawled, got %d", got.PagesCrawled)
	}

	pageA := f.pages.byURL("https://example.com/a")
	if pageA == nil {
		t.Fatal("Expected a page row for /a")
	}
	if pageA.Depth != 1 {
		t.Errorf("Expected /a at depth 1, got %d", pageA.Depth)
	}
	if pageA.ParentURL == nil || *pageA.ParentURL != "https://example.com" {
		t.Errorf("Expected /a parent to be the base URL, got %v", pageA.ParentURL)
	}
}

func TestScrapeWorker_MaxPagesLimit(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 10)
	maxPages := 2
	config.MaxPagesPerJob = &maxPages
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/a"}}
	f.crawler.results["https://example.com/a"] = crawlResult{links: []string{"https://example.com/b"}}
	f.crawler.results["https://example.com/b"] = crawlResult{links: []string{"https://example.com/c"}}

	f.deliver(t, job.ID)

	if n := f.pages.count(); n != 2 {
		t.Errorf("Expected exactly 2 page rows, got %d", n)
	}

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesCrawled != 2 {
		t.Errorf("Expected 2 pages crawled, got %d", got.PagesCrawled)
	}
}

func TestScrapeWorker_RecordsErrorPageAndContinues(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 1)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/bad", "https://example.com/good"}}
	f.crawler.results["https://example.com/bad"] = crawlResult{err: errors.New("connection refused")}
	f.crawler.results["https://example.com/good"] = crawlResult{}

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed despite page failure, got %s", got.Status)
	}
	if got.PagesCrawled != 3 {
		t.Errorf("Expected 3 pages crawled, got %d", got.PagesCrawled)
	}
	if got.PagesFailed != 1 {
		t.Errorf("Expected 1 page failed, got %d", got.PagesFailed)
	}

	bad := f.pages.byURL("https://example.com/bad")
	if bad == nil {
		t.Fatal("Expected an error page row for /bad")
	}
	if bad.HTTPStatus != 0 {
		t.Errorf("Expected status 0 on error page, got %d", bad.HTTPStatus)
	}
	if bad.ErrorMessage == nil || *bad.ErrorMessage != "connection refused" {
		t.Errorf("Expected error message on page, got %v", bad.ErrorMessage)
	}
	if bad.HTMLStoragePath != nil || bad.MarkdownStoragePath != nil {
		t.Error("Expected no storage paths on error page")
	}
}

func TestScrapeWorker_HTTPErrorPageCountsFailed(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com/missing", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com/missing"] = crawlResult{status: 404}

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesCrawled != 1 {
		t.Errorf("Expected 1 page crawled, got %d", got.PagesCrawled)
	}
	if got.PagesFailed != 1 {
		t.Errorf("Expected 1 page failed, got %d", got.PagesFailed)
	}

	page := f.pages.byURL("https://example.com/missing")
	if page == nil {
		t.Fatal("Expected a page row")
	}
	if page.ErrorMessage == nil || *page.ErrorMessage != "HTTP error: 404" {
		t.Errorf("Expected HTTP error message, got %v", page.ErrorMessage)
	}
	if f.objects.objectCount() != 0 {
		t.Errorf("Expected no artifacts for an error page, got %d objects", f.objects.objectCount())
	}
}

func TestScrapeWorker_SkipsVisitedURLs(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 2)
	job := f.addJob(t, config)

	// Both links normalize to the same URL.
	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/x", "https://example.com/x#top"}}
	f.crawler.results["https://example.com/x"] = crawlResult{}
	f.crawler.results["https://example.com/x#top"] = crawlResult{}

	f.deliver(t, job.ID)

	order := f.crawler.fetchOrder()
	if len(order) != 2 {
		t.Fatalf("Expected 2 fetches, got %v", order)
	}

	got := f.job(t, job.ID)
	if got.PagesCrawled != 2 {
		t.Errorf("Expected 2 pages crawled, got %d", got.PagesCrawled)
	}
	if got.PagesSkipped != 1 {
		t.Errorf("Expected 1 page skipped, got %d", got.PagesSkipped)
	}
}

func TestScrapeWorker_UploadsArtifactsAndClearsBody(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{}

	f.deliver(t, job.ID)

	page := f.pages.byURL("https://example.com")
	if page == nil {
		t.Fatal("Expected a page row")
	}
	if page.HTMLStoragePath == nil || *page.HTMLStoragePath != "html:https://example.com" {
		t.Errorf("Expected HTML storage path, got %v", page.HTMLStoragePath)
	}
	if page.MarkdownStoragePath == nil || *page.MarkdownStoragePath != "md:https://example.com" {
		t.Errorf("Expected markdown storage path, got %v", page.MarkdownStoragePath)
	}
	if page.HTMLContent != "" {
		t.Error("Expected raw body to be cleared before the row is stored")
	}

	html, err := f.objects.GetObject(context.Background(), *page.HTMLStoragePath)
	if err != nil {
		t.Fatalf("Expected HTML artifact: %v", err)
	}
	if !strings.Contains(string(html), "https://example.com") {
		t.Errorf("Expected uploaded HTML to contain the page body, got %q", html)
	}

	md, err := f.objects.GetObject(context.Background(), *page.MarkdownStoragePath)
	if err != nil {
		t.Fatalf("Expected markdown artifact: %v", err)
	}
	if string(md) != "# converted\n" {
		t.Errorf("Expected converted markdown, got %q", md)
	}
}

func TestScrapeWorker_HTMLUploadFailureDegradesPage(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{}
	f.objects.htmlErr = errors.New("object store unavailable")

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesFailed != 1 {
		t.Errorf("Expected 1 page failed, got %d", got.PagesFailed)
	}

	page := f.pages.byURL("https://example.com")
	if page == nil {
		t.Fatal("Expected a page row")
	}
	if page.ErrorMessage == nil || !strings.Contains(*page.ErrorMessage, "storage error") {
		t.Errorf("Expected storage error on page, got %v", page.ErrorMessage)
	}
	if page.HTMLStoragePath != nil || page.MarkdownStoragePath != nil {
		t.Error("Expected no storage paths when upload failed")
	}
}

func TestScrapeWorker_MarkdownFailureKeepsHTML(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{}
	f.md.err = errors.New("converter down")

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Expected job completed, got %s", got.Status)
	}
	if got.PagesFailed != 0 {
		t.Errorf("Expected no failed pages, got %d", got.PagesFailed)
	}

	page := f.pages.byURL("https://example.com")
	if page == nil {
		t.Fatal("Expected a page row")
	}
	if page.HTMLStoragePath == nil {
		t.Error("Expected HTML storage path to survive markdown failure")
	}
	if page.MarkdownStoragePath != nil {
		t.Errorf("Expected no markdown path, got %v", page.MarkdownStoragePath)
	}
	if page.ErrorMessage != nil {
		t.Errorf("Expected no error message, got %v", *page.ErrorMessage)
	}
}

func TestScrapeWorker_PoisonPayloadGoesToFailedQueue(t *testing.T) {
	f := newWorkerFixture()

	f.worker.handleReservation(context.Background(), &interfaces.Reservation{ID: "res-1", Payload: `{"job_id":`})

	if failed := f.queue.failedIDs(); len(failed) != 1 || failed[0] != "res-1" {
		t.Errorf("Expected reservation failed, got %v", failed)
	}
	if completed := f.queue.completedIDs(); len(completed) != 0 {
		t.Errorf("Expected no completions, got %v", completed)
	}
}

func TestScrapeWorker_UnknownJobGoesToFailedQueue(t *testing.T) {
	f := newWorkerFixture()

	f.deliver(t, uuid.New().String())

	if failed := f.queue.failedIDs(); len(failed) != 1 {
		t.Errorf("Expected reservation failed, got %v", failed)
	}
	if n := f.pages.count(); n != 0 {
		t.Errorf("Expected no pages, got %d", n)
	}
}

func TestScrapeWorker_TerminalJobDropped(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	loaded := f.job(t, job.ID)
	loaded.Complete()
	if err := f.jobs.Update(context.Background(), loaded); err != nil {
		t.Fatalf("Failed to seed terminal job: %v", err)
	}

	f.deliver(t, job.ID)

	if order := f.crawler.fetchOrder(); len(order) != 0 {
		t.Errorf("Expected no fetches for a terminal job, got %v", order)
	}
	if completed := f.queue.completedIDs(); len(completed) != 1 {
		t.Errorf("Expected reservation completed, got %v", completed)
	}
	if types := f.events.types(); len(types) != 0 {
		t.Errorf("Expected no events, got %v", types)
	}
}

func TestScrapeWorker_MissingConfigFailsJob(t *testing.T) {
	f := newWorkerFixture()
	job := models.NewJob(uuid.New().String(), uuid.New().String())
	if err := f.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Failed to seed job: %v", err)
	}

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusFailed {
		t.Errorf("Expected job failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "not found") {
		t.Errorf("Expected config error on job, got %v", got.ErrorMessage)
	}

	// Execution failures complete the reservation; the terminal state lives
	// on the job row.
	if completed := f.queue.completedIDs(); len(completed) != 1 {
		t.Errorf("Expected reservation completed, got %v", completed)
	}
	if failed := f.queue.failedIDs(); len(failed) != 0 {
		t.Errorf("Expected no failed reservations, got %v", failed)
	}
}

func TestScrapeWorker_InvalidIncludePatternFailsJob(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	config.IncludePatterns = []string{"["}
	job := f.addJob(t, config)

	f.deliver(t, job.ID)

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusFailed {
		t.Errorf("Expected job failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "invalid include pattern") {
		t.Errorf("Expected pattern error on job, got %v", got.ErrorMessage)
	}
	if order := f.crawler.fetchOrder(); len(order) != 0 {
		t.Errorf("Expected no fetches, got %v", order)
	}
}

func TestScrapeWorker_CancelStopsCrawl(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 5)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{links: []string{"https://example.com/a"}}
	f.crawler.results["https://example.com/a"] = crawlResult{links: []string{"https://example.com/b"}}

	// First poll sees running, second sees the cancel.
	f.jobs.cancelAfterReads = 2

	f.deliver(t, job.ID)

	order := f.crawler.fetchOrder()
	if len(order) != 1 {
		t.Fatalf("Expected crawl to stop after 1 fetch, got %v", order)
	}

	got := f.job(t, job.ID)
	if got.Status != models.JobStatusCancelled {
		t.Errorf("Expected job to stay cancelled, got %s", got.Status)
	}
	if got.PagesCrawled != 1 {
		t.Errorf("Expected 1 page crawled before cancel, got %d", got.PagesCrawled)
	}
	if completed := f.queue.completedIDs(); len(completed) != 1 {
		t.Errorf("Expected reservation completed, got %v", completed)
	}

	for _, eventType := range f.events.types() {
		if eventType == interfaces.EventJobCompleted {
			t.Error("Expected no completed event for a cancelled job")
		}
	}
}

func TestScrapeWorker_PublishesLifecycleEvents(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)

	f.crawler.results["https://example.com"] = crawlResult{}

	f.deliver(t, job.ID)

	want := []interfaces.EventType{interfaces.EventJobStarted, interfaces.EventPageScraped, interfaces.EventJobCompleted}
	got := f.events.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected event %d to be %s, got %s", i, want[i], got[i])
		}
	}
}

func TestScrapeWorker_StartStop(t *testing.T) {
	f := newWorkerFixture()
	config := testConfig("https://example.com", 0)
	job := f.addJob(t, config)
	f.crawler.results["https://example.com"] = crawlResult{}

	payload, err := models.NewJobPayload(job.ID).Encode()
	if err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	f.queue.reservations = append(f.queue.reservations, &interfaces.Reservation{ID: "res-1", Payload: payload})

	f.worker.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := f.job(t, job.ID)
		if got.Status == models.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for job to complete, status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.worker.Stop()

	if completed := f.queue.completedIDs(); len(completed) != 1 {
		t.Errorf("Expected reservation completed, got %v", completed)
	}
}

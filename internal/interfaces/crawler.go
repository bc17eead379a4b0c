package interfaces

import (
	"context"
	"time"

	"github.com/fortai-labs/firmata/internal/models"
)

// URLFilter decides whether a URL belongs to a crawl.
type URLFilter interface {
	ShouldCrawl(url string) bool
}

// CrawlRequest carries one frontier entry plus the per-config crawl policy.
// Filter is compiled once per job, never per URL.
type CrawlRequest struct {
	URL           string
	Depth         int
	ParentURL     *string
	Filter        URLFilter
	UserAgent     string
	Headers       map[string]string
	RequestDelay  time.Duration
	RespectRobots bool
}

// Crawler fetches a single URL and returns the resulting page plus the
// absolute URLs discovered in it. The returned page carries the raw HTML in
// a transient field and leaves JobID empty for the caller to fill.
type Crawler interface {
	Fetch(ctx context.Context, req *CrawlRequest) (*models.Page, []string, error)
}

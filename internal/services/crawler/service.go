package crawler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// Config carries the process-wide crawl settings.
type Config struct {
	MaxConcurrentRequests int
	DelayBetweenRequests  time.Duration
	MaxRetries            int
	UserAgent             string
	RequestTimeout        time.Duration
	RespectRobotsTxt      bool
	MaxPageSizeBytes      int64
	RobotsCacheTTL        time.Duration
}

// Service composes the URL filter, robots cache, rate limiter, fetcher and
// parser into the single-URL crawl operation. The robots cache, rate limiter
// state and concurrency semaphore are shared across every job in the process.
type Service struct {
	config      Config
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	robots      *RobotsCache
	semaphore   chan struct{}
	logger      arbor.ILogger
}

var _ interfaces.Crawler = (*Service)(nil)

// NewService creates a crawler from the process configuration.
func NewService(config Config, logger arbor.ILogger) *Service {
	client := &http.Client{Timeout: config.RequestTimeout}

	return &Service{
		config:      config,
		fetcher:     NewFetcher(client, NewRetryPolicy(config.MaxRetries), config.MaxPageSizeBytes, logger),
		rateLimiter: NewRateLimiter(config.DelayBetweenRequests),
		robots:      NewRobotsCache(client, config.UserAgent, config.RobotsCacheTTL, logger),
		semaphore:   make(chan struct{}, config.MaxConcurrentRequests),
		logger:      logger,
	}
}

// Fetch crawls one URL: filter, normalize, robots check, concurrency slot,
// per-host delay, HTTP get, parse. Links are extracted only from 200
// responses; 4xx responses become pages with an error message. The returned
// page leaves JobID empty.
func (s *Service) Fetch(ctx context.Context, req *interfaces.CrawlRequest) (*models.Page, []string, error) {
	if req.Filter != nil && !req.Filter.ShouldCrawl(req.URL) {
		return nil, nil, common.InvalidInputf("url does not match include/exclude patterns: %s", req.URL)
	}

	normalized, err := common.NormalizeURL(req.URL)
	if err != nil {
		return nil, nil, common.InvalidInputf("invalid url %s: %v", req.URL, err)
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, nil, common.InvalidInputf("invalid url %s: %v", req.URL, err)
	}

	if s.config.RespectRobotsTxt && req.RespectRobots {
		if !s.robots.Allowed(ctx, parsed.Scheme, parsed.Host, parsed.Path) {
			return nil, nil, common.InvalidInputf("url disallowed by robots.txt: %s", req.URL)
		}
	}

	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	defer func() { <-s.semaphore }()

	if err := s.rateLimiter.Wait(ctx, parsed.Host, req.RequestDelay); err != nil {
		return nil, nil, err
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = s.config.UserAgent
	}

	resp, err := s.fetcher.Get(ctx, normalized, userAgent, req.Headers)
	if err != nil {
		return nil, nil, err
	}

	page := s.buildPage(req, normalized, resp)

	var links []string
	if resp.StatusCode == http.StatusOK {
		links = ExtractLinks(resp.Body, normalized)
	}

	s.logger.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("depth", req.Depth).
		Int("links", len(links)).
		Msg("Fetched page")

	return page, links, nil
}

func (s *Service) buildPage(req *interfaces.CrawlRequest, normalized string, resp *Response) *models.Page {
	hash := md5.Sum([]byte(resp.Body))

	headersJSON, err := json.Marshal(resp.Headers)
	if err != nil {
		headersJSON = nil
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"content_length": len(resp.Body),
		"content_type":   resp.Headers["Content-Type"],
	})

	page := &models.Page{
		ID:            uuid.New().String(),
		URL:           req.URL,
		NormalizedURL: normalized,
		ContentHash:   hex.EncodeToString(hash[:]),
		HTTPStatus:    resp.StatusCode,
		Headers:       headersJSON,
		CrawledAt:     time.Now().UTC(),
		Depth:         req.Depth,
		ParentURL:     req.ParentURL,
		Metadata:      metadata,
		HTMLContent:   resp.Body,
	}

	if title := ExtractTitle(resp.Body); title != "" {
		page.Title = &title
	}

	if resp.StatusCode >= 400 {
		message := fmt.Sprintf("HTTP error: %d", resp.StatusCode)
		page.ErrorMessage = &message
	}

	return page
}

package models

import (
	"fmt"
	"net/url"
	"time"
)

// ScraperConfig is the crawl specification for a site. A config owns the jobs
// created from it; every job snapshots nothing and re-reads the config at
// execution time, so edits apply to the next run.
type ScraperConfig struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	BaseURL         string   `json:"base_url"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`

	// MaxDepth bounds traversal depth inclusively: pages exist at depths
	// 0..MaxDepth, and links found at depth MaxDepth are not followed.
	// MaxDepth=0 crawls only the base URL.
	MaxDepth       int  `json:"max_depth"`
	MaxPagesPerJob *int `json:"max_pages_per_job,omitempty"`

	RespectRobotsTxt      bool              `json:"respect_robots_txt"`
	UserAgent             string            `json:"user_agent,omitempty"`
	RequestDelayMs        int               `json:"request_delay_ms"`
	MaxConcurrentRequests int               `json:"max_concurrent_requests"`
	Schedule              *string           `json:"schedule,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks structural constraints. Pattern compilation is validated
// separately when the crawl filter is built.
func (c *ScraperConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must have a host")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.MaxPagesPerJob != nil && *c.MaxPagesPerJob <= 0 {
		return fmt.Errorf("max_pages_per_job must be > 0 when set")
	}
	if c.RequestDelayMs < 0 {
		return fmt.Errorf("request_delay_ms must be >= 0")
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max_concurrent_requests must be >= 1")
	}
	return nil
}

// RequestDelay returns the per-host delay as a duration.
func (c *ScraperConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

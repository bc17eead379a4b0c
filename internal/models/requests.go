package models

// Request DTOs for the REST API. Field validation runs through
// go-playground/validator before any store is touched.

// CreateConfigRequest is the body of POST /api/configs.
type CreateConfigRequest struct {
	Name                  string            `json:"name" validate:"required,min=1,max=255"`
	Description           string            `json:"description,omitempty"`
	BaseURL               string            `json:"base_url" validate:"required,url"`
	IncludePatterns       []string          `json:"include_patterns,omitempty"`
	ExcludePatterns       []string          `json:"exclude_patterns,omitempty"`
	MaxDepth              int               `json:"max_depth" validate:"gte=0"`
	MaxPagesPerJob        *int              `json:"max_pages_per_job,omitempty" validate:"omitempty,gt=0"`
	RespectRobotsTxt      *bool             `json:"respect_robots_txt,omitempty"`
	UserAgent             string            `json:"user_agent,omitempty"`
	RequestDelayMs        *int              `json:"request_delay_ms,omitempty" validate:"omitempty,gte=0"`
	MaxConcurrentRequests *int              `json:"max_concurrent_requests,omitempty" validate:"omitempty,gte=1"`
	Schedule              *string           `json:"schedule,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	Active                *bool             `json:"active,omitempty"`
}

// UpdateConfigRequest is the body of PUT /api/configs/{id}. Nil fields are
// left unchanged.
type UpdateConfigRequest struct {
	Name                  *string           `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description           *string           `json:"description,omitempty"`
	BaseURL               *string           `json:"base_url,omitempty" validate:"omitempty,url"`
	IncludePatterns       []string          `json:"include_patterns,omitempty"`
	ExcludePatterns       []string          `json:"exclude_patterns,omitempty"`
	MaxDepth              *int              `json:"max_depth,omitempty" validate:"omitempty,gte=0"`
	MaxPagesPerJob        *int              `json:"max_pages_per_job,omitempty" validate:"omitempty,gt=0"`
	RespectRobotsTxt      *bool             `json:"respect_robots_txt,omitempty"`
	UserAgent             *string           `json:"user_agent,omitempty"`
	RequestDelayMs        *int              `json:"request_delay_ms,omitempty" validate:"omitempty,gte=0"`
	MaxConcurrentRequests *int              `json:"max_concurrent_requests,omitempty" validate:"omitempty,gte=1"`
	Schedule              *string           `json:"schedule,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	Active                *bool             `json:"active,omitempty"`
}

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	ConfigID string `json:"config_id" validate:"required,uuid4"`
}

// CreateWebhookRequest is the body of POST /api/webhooks.
type CreateWebhookRequest struct {
	ConfigID string   `json:"config_id" validate:"required,uuid4"`
	URL      string   `json:"url" validate:"required,url"`
	Events   []string `json:"events,omitempty" validate:"omitempty,dive,oneof=job.created job.started job.completed job.failed job.cancelled page.scraped"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// UpdateWebhookRequest is the body of PUT /api/webhooks/{id}. Nil fields are
// left unchanged.
type UpdateWebhookRequest struct {
	URL      *string  `json:"url,omitempty" validate:"omitempty,url"`
	Events   []string `json:"events,omitempty" validate:"omitempty,dive,oneof=job.created job.started job.completed job.failed job.cancelled page.scraped"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// ApplyTo overlays the set fields onto an existing webhook.
func (r *UpdateWebhookRequest) ApplyTo(webhook *Webhook) {
	if r.URL != nil {
		webhook.URL = *r.URL
	}
	if r.Events != nil {
		webhook.Events = r.Events
	}
	if r.IsActive != nil {
		webhook.IsActive = *r.IsActive
	}
}

// Defaults applied when a create request leaves optional crawl fields unset.
const (
	DefaultUserAgent             = "FortaiBot/1.0"
	DefaultRequestDelayMs        = 1000
	DefaultMaxConcurrentRequests = 5
)

// ToConfig builds a ScraperConfig from the request, applying defaults for
// the optional crawl fields. The service assigns ID and timestamps.
func (r *CreateConfigRequest) ToConfig() *ScraperConfig {
	config := &ScraperConfig{
		Name:                  r.Name,
		Description:           r.Description,
		BaseURL:               r.BaseURL,
		IncludePatterns:       r.IncludePatterns,
		ExcludePatterns:       r.ExcludePatterns,
		MaxDepth:              r.MaxDepth,
		MaxPagesPerJob:        r.MaxPagesPerJob,
		RespectRobotsTxt:      true,
		UserAgent:             DefaultUserAgent,
		RequestDelayMs:        DefaultRequestDelayMs,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		Schedule:              r.Schedule,
		Headers:               r.Headers,
		Active:                true,
	}
	if r.RespectRobotsTxt != nil {
		config.RespectRobotsTxt = *r.RespectRobotsTxt
	}
	if r.UserAgent != "" {
		config.UserAgent = r.UserAgent
	}
	if r.RequestDelayMs != nil {
		config.RequestDelayMs = *r.RequestDelayMs
	}
	if r.MaxConcurrentRequests != nil {
		config.MaxConcurrentRequests = *r.MaxConcurrentRequests
	}
	if r.Active != nil {
		config.Active = *r.Active
	}
	return config
}

// ApplyTo overlays the non-nil update fields onto an existing config.
func (r *UpdateConfigRequest) ApplyTo(config *ScraperConfig) {
	if r.Name != nil {
		config.Name = *r.Name
	}
	if r.Description != nil {
		config.Description = *r.Description
	}
	if r.BaseURL != nil {
		config.BaseURL = *r.BaseURL
	}
	if r.IncludePatterns != nil {
		config.IncludePatterns = r.IncludePatterns
	}
	if r.ExcludePatterns != nil {
		config.ExcludePatterns = r.ExcludePatterns
	}
	if r.MaxDepth != nil {
		config.MaxDepth = *r.MaxDepth
	}
	if r.MaxPagesPerJob != nil {
		config.MaxPagesPerJob = r.MaxPagesPerJob
	}
	if r.RespectRobotsTxt != nil {
		config.RespectRobotsTxt = *r.RespectRobotsTxt
	}
	if r.UserAgent != nil {
		config.UserAgent = *r.UserAgent
	}
	if r.RequestDelayMs != nil {
		config.RequestDelayMs = *r.RequestDelayMs
	}
	if r.MaxConcurrentRequests != nil {
		config.MaxConcurrentRequests = *r.MaxConcurrentRequests
	}
	if r.Schedule != nil {
		config.Schedule = r.Schedule
	}
	if r.Headers != nil {
		config.Headers = r.Headers
	}
	if r.Active != nil {
		config.Active = *r.Active
	}
}

// ConfigDefinition is one entry of a YAML import file posted to
// POST /api/configs/import.
type ConfigDefinition struct {
	Name                  string            `yaml:"name" json:"name"`
	Description           string            `yaml:"description" json:"description"`
	BaseURL               string            `yaml:"base_url" json:"base_url"`
	IncludePatterns       []string          `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns       []string          `yaml:"exclude_patterns" json:"exclude_patterns"`
	MaxDepth              int               `yaml:"max_depth" json:"max_depth"`
	MaxPagesPerJob        *int              `yaml:"max_pages_per_job" json:"max_pages_per_job"`
	RespectRobotsTxt      *bool             `yaml:"respect_robots_txt" json:"respect_robots_txt"`
	UserAgent             string            `yaml:"user_agent" json:"user_agent"`
	RequestDelayMs        *int              `yaml:"request_delay_ms" json:"request_delay_ms"`
	MaxConcurrentRequests *int              `yaml:"max_concurrent_requests" json:"max_concurrent_requests"`
	Schedule              *string           `yaml:"schedule" json:"schedule"`
	Headers               map[string]string `yaml:"headers" json:"headers"`
	Active                *bool             `yaml:"active" json:"active"`
}

// ConfigImport is the document shape for YAML config imports.
type ConfigImport struct {
	Configs []ConfigDefinition `yaml:"configs" json:"configs"`
}

// AsCreateRequest converts a YAML definition into the create request shape
// so imports share the validation and default paths with the JSON API.
func (d *ConfigDefinition) AsCreateRequest() *CreateConfigRequest {
	return &CreateConfigRequest{
		Name:                  d.Name,
		Description:           d.Description,
		BaseURL:               d.BaseURL,
		IncludePatterns:       d.IncludePatterns,
		ExcludePatterns:       d.ExcludePatterns,
		MaxDepth:              d.MaxDepth,
		MaxPagesPerJob:        d.MaxPagesPerJob,
		RespectRobotsTxt:      d.RespectRobotsTxt,
		UserAgent:             d.UserAgent,
		RequestDelayMs:        d.RequestDelayMs,
		MaxConcurrentRequests: d.MaxConcurrentRequests,
		Schedule:              d.Schedule,
		Headers:               d.Headers,
		Active:                d.Active,
	}
}

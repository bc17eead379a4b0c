package models

import (
	"testing"
	"time"
)

func validConfig() *ScraperConfig {
	return &ScraperConfig{
		Name:                  "Docs",
		BaseURL:               "https://docs.example.com",
		MaxDepth:              2,
		RequestDelayMs:        1000,
		MaxConcurrentRequests: 5,
	}
}

func TestScraperConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ScraperConfig)
		wantErr bool
	}{
		{"Valid config", func(c *ScraperConfig) {}, false},
		{"Missing name", func(c *ScraperConfig) { c.Name = "" }, true},
		{"FTP scheme", func(c *ScraperConfig) { c.BaseURL = "ftp://example.com" }, true},
		{"No host", func(c *ScraperConfig) { c.BaseURL = "https://" }, true},
		{"Relative URL", func(c *ScraperConfig) { c.BaseURL = "/docs" }, true},
		{"Negative depth", func(c *ScraperConfig) { c.MaxDepth = -1 }, true},
		{"Depth zero is valid", func(c *ScraperConfig) { c.MaxDepth = 0 }, false},
		{"Zero page cap", func(c *ScraperConfig) { zero := 0; c.MaxPagesPerJob = &zero }, true},
		{"Positive page cap", func(c *ScraperConfig) { limit := 100; c.MaxPagesPerJob = &limit }, false},
		{"Negative delay", func(c *ScraperConfig) { c.RequestDelayMs = -1 }, true},
		{"Zero concurrency", func(c *ScraperConfig) { c.MaxConcurrentRequests = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
		})
	}
}

func TestScraperConfigRequestDelay(t *testing.T) {
	config := validConfig()
	config.RequestDelayMs = 250

	if got := config.RequestDelay(); got != 250*time.Millisecond {
		t.Errorf("RequestDelay: got %v, want 250ms", got)
	}
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Page is one fetched URL within a job.
//
// NormalizedURL is the URL with its fragment removed and an empty path
// promoted to "/". When ErrorMessage is set, no storage paths are written.
type Page struct {
	ID            string `json:"id"`
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`

	// ContentHash is the hex MD5 of the raw HTML body, empty when no body
	// was received.
	ContentHash string `json:"content_hash,omitempty"`

	// HTTPStatus is 0 when the fetch failed before a response was received.
	HTTPStatus int             `json:"http_status"`
	Headers    json.RawMessage `json:"headers,omitempty"`
	CrawledAt  time.Time       `json:"crawled_at"`

	HTMLStoragePath     *string `json:"html_storage_path,omitempty"`
	MarkdownStoragePath *string `json:"markdown_storage_path,omitempty"`

	Title        *string         `json:"title,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Depth        int             `json:"depth"`
	ParentURL    *string         `json:"parent_url,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`

	// HTMLContent carries the raw body between fetch and upload. It is never
	// persisted on the page row.
	HTMLContent string `json:"-"`
}

// ErrorPage builds a page record for a URL whose fetch failed before any
// response was received.
func ErrorPage(jobID, url, normalizedURL, message string, depth int, parentURL *string) *Page {
	return &Page{
		ID:            uuid.New().String(),
		JobID:         jobID,
		URL:           url,
		NormalizedURL: normalizedURL,
		HTTPStatus:    0,
		CrawledAt:     time.Now().UTC(),
		ErrorMessage:  &message,
		Depth:         depth,
		ParentURL:     parentURL,
	}
}

// HasError reports whether the page recorded a fetch or HTTP error.
func (p *Page) HasError() bool {
	return p.ErrorMessage != nil && *p.ErrorMessage != ""
}

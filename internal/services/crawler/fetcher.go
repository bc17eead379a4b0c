package crawler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
)

// Response captures one fetched HTTP response with its body decoded as text.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Fetcher issues HTTP GETs with retry and a declared-size limit. Rate
// limiting and robots checks are the caller's concern.
type Fetcher struct {
	client       *http.Client
	policy       *RetryPolicy
	maxBodyBytes int64
	logger       arbor.ILogger
}

// NewFetcher creates a fetcher on top of the shared HTTP client.
func NewFetcher(client *http.Client, policy *RetryPolicy, maxBodyBytes int64, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client:       client,
		policy:       policy,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Get fetches a URL. Transport errors and 5xx responses are retried per the
// policy; 4xx responses are returned as-is. Responses whose declared
// Content-Length exceeds the size limit fail before the body is read. The
// body is decoded as UTF-8 with invalid bytes replaced.
func (f *Fetcher) Get(ctx context.Context, rawURL, userAgent string, headers map[string]string) (*Response, error) {
	var resp *http.Response

	status, err := f.policy.Do(ctx, f.logger, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", userAgent)
		for name, value := range headers {
			req.Header.Set(name, value)
		}

		r, err := f.client.Do(req)
		if err != nil {
			return 0, err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return r.StatusCode, nil
		}

		resp = r
		return r.StatusCode, nil
	})
	if err != nil {
		return nil, common.ScraperErrorf("request failed after %d retries: %v", f.policy.MaxRetries, err)
	}
	if resp == nil {
		return nil, common.ScraperErrorf("server error after %d retries: HTTP %d", f.policy.MaxRetries, status)
	}
	defer resp.Body.Close()

	if resp.ContentLength > f.maxBodyBytes {
		return nil, common.InvalidInputf("content too large: %d bytes (max: %d bytes)", resp.ContentLength, f.maxBodyBytes)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.ScraperErrorf("failed to read response body: %v", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		respHeaders[name] = resp.Header.Get(name)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    respHeaders,
		Body:       sanitizeUTF8(body),
	}, nil
}

// sanitizeUTF8 decodes b as UTF-8, substituting U+FFFD for each invalid byte.
func sanitizeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, r := range string(b) {
		sb.WriteRune(r)
	}
	return sb.String()
}

package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

func newTestCrawler(respectRobots bool) *Service {
	return NewService(Config{
		MaxConcurrentRequests: 2,
		DelayBetweenRequests:  0,
		MaxRetries:            1,
		UserAgent:             "TestBot/1.0",
		RequestTimeout:        5 * time.Second,
		RespectRobotsTxt:      respectRobots,
		MaxPageSizeBytes:      1 << 20,
		RobotsCacheTTL:        time.Hour,
	}, arbor.NewLogger())
}

// TestServiceFetchOKPage tests a successful crawl end to end
func TestServiceFetchOKPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Welcome</title></head><body><a href="/next">next</a></body></html>`))
	}))
	defer server.Close()

	service := newTestCrawler(false)

	page, links, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:   server.URL + "/start#fragment",
		Depth: 0,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if page.HTTPStatus != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.HTTPStatus)
	}
	if page.Title == nil || *page.Title != "Welcome" {
		t.Errorf("Expected title Welcome, got %v", page.Title)
	}
	if page.NormalizedURL != server.URL+"/start" {
		t.Errorf("Expected fragment stripped, got %q", page.NormalizedURL)
	}
	if page.ContentHash == "" {
		t.Error("Expected content hash to be set")
	}
	if page.JobID != "" {
		t.Errorf("Expected JobID left empty, got %q", page.JobID)
	}
	if page.ID == "" {
		t.Error("Expected page ID to be minted")
	}
	if page.HTMLContent == "" {
		t.Error("Expected raw HTML carried on the page")
	}
	if page.ErrorMessage != nil {
		t.Errorf("Expected no error message, got %q", *page.ErrorMessage)
	}

	if len(links) != 1 || links[0] != server.URL+"/next" {
		t.Errorf("Expected one resolved link, got %v", links)
	}
}

// TestServiceFetch404 tests that client errors become error pages
func TestServiceFetch404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<html><a href="/ignored">x</a></html>`))
	}))
	defer server.Close()

	service := newTestCrawler(false)

	page, links, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:   server.URL + "/missing",
		Depth: 1,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if page.HTTPStatus != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", page.HTTPStatus)
	}
	if page.ErrorMessage == nil || *page.ErrorMessage != "HTTP error: 404" {
		t.Errorf("Expected error message %q, got %v", "HTTP error: 404", page.ErrorMessage)
	}
	if len(links) != 0 {
		t.Errorf("Expected no links from a 404 response, got %v", links)
	}
}

// TestServiceFetchFilterRejection tests the pattern gate
func TestServiceFetchFilterRejection(t *testing.T) {
	service := newTestCrawler(false)

	filter, err := NewLinkFilter([]string{`/docs/`}, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewLinkFilter failed: %v", err)
	}

	_, _, err = service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:    "http://example.com/blog/post",
		Filter: filter,
	})
	if err == nil {
		t.Fatal("Expected error for filtered URL")
	}
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "patterns") {
		t.Errorf("Expected pattern rejection message, got %q", err.Error())
	}
}

// TestServiceFetchInvalidURL tests URL validation
func TestServiceFetchInvalidURL(t *testing.T) {
	service := newTestCrawler(false)

	_, _, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL: "not a url",
	})
	if err == nil {
		t.Fatal("Expected error for invalid URL")
	}
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
}

// TestServiceFetchRobotsDisallowed tests the robots gate
func TestServiceFetchRobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private"))
			return
		}
		w.Write([]byte("<html>secret</html>"))
	}))
	defer server.Close()

	service := newTestCrawler(true)

	_, _, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:           server.URL + "/private/page",
		RespectRobots: true,
	})
	if err == nil {
		t.Fatal("Expected error for robots-disallowed URL")
	}
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "robots") {
		t.Errorf("Expected robots rejection message, got %q", err.Error())
	}

	// An allowed path on the same host goes through.
	page, _, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:           server.URL + "/public/page",
		RespectRobots: true,
	})
	if err != nil {
		t.Fatalf("Fetch of allowed path failed: %v", err)
	}
	if page.HTTPStatus != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.HTTPStatus)
	}
}

// TestServiceFetchRobotsOptOut tests that the per-config flag bypasses robots
func TestServiceFetchRobotsOptOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /"))
			return
		}
		w.Write([]byte("<html>open</html>"))
	}))
	defer server.Close()

	service := newTestCrawler(true)

	page, _, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:           server.URL + "/page",
		RespectRobots: false,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.HTTPStatus != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.HTTPStatus)
	}
}

// TestServiceFetchCustomUserAgent tests per-config user agent override
func TestServiceFetchCustomUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	service := newTestCrawler(false)

	_, _, err := service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL:       server.URL + "/page",
		UserAgent: "ConfigBot/2.0",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA != "ConfigBot/2.0" {
		t.Errorf("Expected ConfigBot/2.0 user agent, got %q", gotUA)
	}

	// Falls back to the process-wide agent when the config has none.
	_, _, err = service.Fetch(context.Background(), &interfaces.CrawlRequest{
		URL: server.URL + "/other",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA != "TestBot/1.0" {
		t.Errorf("Expected TestBot/1.0 user agent, got %q", gotUA)
	}
}

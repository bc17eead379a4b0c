package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	// maxRobotsBytes bounds how much of a robots.txt body is read.
	maxRobotsBytes = 512 * 1024

	// maxRobotsHosts bounds the cache size; the whole map is reset when exceeded.
	maxRobotsHosts = 1024
)

// robotsRules holds the allow/disallow path prefixes collected for one host.
type robotsRules struct {
	allow     []string
	disallow  []string
	fetchedAt time.Time
}

// isAllowed reports whether a path may be crawled. A path is disallowed when
// some disallow prefix matches it and no allow prefix matches with a strictly
// longer prefix.
func (r *robotsRules) isAllowed(path string) bool {
	longestDisallow := -1
	for _, p := range r.disallow {
		if strings.HasPrefix(path, p) && len(p) > longestDisallow {
			longestDisallow = len(p)
		}
	}
	if longestDisallow < 0 {
		return true
	}
	for _, p := range r.allow {
		if strings.HasPrefix(path, p) && len(p) > longestDisallow {
			return true
		}
	}
	return false
}

// parseRobots reads robots.txt content line by line, collecting Allow and
// Disallow prefixes from sections whose User-agent is "*" or matches the
// configured agent. Empty rule values are ignored.
func parseRobots(content, userAgent string) *robotsRules {
	rules := &robotsRules{}
	applies := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			applies = value == "*" || strings.EqualFold(value, userAgent)
		case "allow":
			if applies && value != "" {
				rules.allow = append(rules.allow, value)
			}
		case "disallow":
			if applies && value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		}
	}

	return rules
}

// allowAllRules is cached for hosts whose robots.txt is missing or unreachable.
func allowAllRules() *robotsRules {
	return &robotsRules{}
}

// RobotsCache fetches and caches per-host robots.txt rules. Lookups are
// process-wide; entries expire after the configured TTL. Fetch failures and
// non-2xx responses are cached as allow-all.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    arbor.ILogger

	mu      sync.Mutex
	entries map[string]*robotsRules
}

// NewRobotsCache creates a robots cache backed by the given HTTP client.
func NewRobotsCache(client *http.Client, userAgent string, ttl time.Duration, logger arbor.ILogger) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		logger:    logger,
		entries:   make(map[string]*robotsRules),
	}
}

// Allowed reports whether the path on the given host may be crawled. The
// robots.txt is fetched with the same scheme as the target URL. The cache
// lock is never held across the fetch.
func (c *RobotsCache) Allowed(ctx context.Context, scheme, host, path string) bool {
	if path == "" {
		path = "/"
	}

	c.mu.Lock()
	entry, ok := c.entries[host]
	if ok && time.Since(entry.fetchedAt) > c.ttl {
		delete(c.entries, host)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		entry = c.fetch(ctx, scheme, host)
		entry.fetchedAt = time.Now()

		c.mu.Lock()
		if len(c.entries) >= maxRobotsHosts {
			c.logger.Debug().
				Int("hosts", len(c.entries)).
				Msg("Robots cache full, resetting")
			c.entries = make(map[string]*robotsRules)
		}
		c.entries[host] = entry
		c.mu.Unlock()
	}

	return entry.isAllowed(path)
}

func (c *RobotsCache) fetch(ctx context.Context, scheme, host string) *robotsRules {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return allowAllRules()
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("host", host).
			Err(err).
			Msg("Failed to fetch robots.txt, allowing all")
		return allowAllRules()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return allowAllRules()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		c.logger.Debug().
			Str("host", host).
			Err(err).
			Msg("Failed to read robots.txt, allowing all")
		return allowAllRules()
	}

	c.logger.Debug().
		Str("host", host).
		Msg("Fetched robots.txt")

	return parseRobots(string(body), c.userAgent)
}

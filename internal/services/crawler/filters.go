package crawler

import (
	"regexp"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
)

// FilterResult contains the filtering outcome for one URL.
type FilterResult struct {
	Allowed    bool
	Reason     string
	ExcludedBy string // Pattern that excluded the URL (if applicable)
}

// LinkFilter applies include/exclude regex patterns to candidate URLs.
// Patterns are compiled once at construction, never per URL.
type LinkFilter struct {
	includeRegexes []*regexp.Regexp
	excludeRegexes []*regexp.Regexp
}

// NewLinkFilter compiles the configured pattern sets. A malformed include
// pattern is a construction error; a malformed exclude pattern is skipped
// with a warning.
func NewLinkFilter(includePatterns, excludePatterns []string, logger arbor.ILogger) (*LinkFilter, error) {
	filter := &LinkFilter{
		includeRegexes: make([]*regexp.Regexp, 0, len(includePatterns)),
		excludeRegexes: make([]*regexp.Regexp, 0, len(excludePatterns)),
	}

	for _, pattern := range includePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, common.InvalidInputf("invalid include pattern %q: %v", pattern, err)
		}
		filter.includeRegexes = append(filter.includeRegexes, re)
	}

	for _, pattern := range excludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("pattern", pattern).
				Msg("Skipping invalid exclude pattern")
			continue
		}
		filter.excludeRegexes = append(filter.excludeRegexes, re)
	}

	return filter, nil
}

// FilterURL applies all filtering rules to a URL. Exclude patterns reject on
// any match; include patterns, when present, require at least one match.
func (f *LinkFilter) FilterURL(url string) FilterResult {
	for _, re := range f.excludeRegexes {
		if re.MatchString(url) {
			return FilterResult{
				Allowed:    false,
				Reason:     "matches exclude pattern",
				ExcludedBy: re.String(),
			}
		}
	}

	if len(f.includeRegexes) > 0 {
		matched := false
		for _, re := range f.includeRegexes {
			if re.MatchString(url) {
				matched = true
				break
			}
		}
		if !matched {
			return FilterResult{
				Allowed: false,
				Reason:  "does not match include patterns",
			}
		}
	}

	return FilterResult{Allowed: true}
}

// ShouldCrawl reports whether a URL passes the configured patterns.
func (f *LinkFilter) ShouldCrawl(url string) bool {
	return f.FilterURL(url).Allowed
}

// FilterLinks applies the filter to a URL set, returning the admitted subset.
func (f *LinkFilter) FilterLinks(urls []string) []string {
	filtered := make([]string, 0, len(urls))
	for _, url := range urls {
		if f.ShouldCrawl(url) {
			filtered = append(filtered, url)
		}
	}
	return filtered
}

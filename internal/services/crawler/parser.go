package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	titleRe      = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	hrefDoubleRe = regexp.MustCompile(`(?i)<a[^>]+href="([^"]+)"`)
	hrefSingleRe = regexp.MustCompile(`(?i)<a[^>]+href='([^']+)'`)
)

// ExtractTitle returns the first <title> text, trimmed, or "" when absent.
func ExtractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractLinks returns the absolute http(s) URLs referenced by anchor tags,
// resolved against baseURL and deduplicated. Fragment-only, javascript:,
// mailto:, tel: and empty hrefs are dropped.
func ExtractLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	collect := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			href := m[1]
			if href == "" ||
				strings.HasPrefix(href, "#") ||
				strings.HasPrefix(href, "javascript:") ||
				strings.HasPrefix(href, "mailto:") ||
				strings.HasPrefix(href, "tel:") {
				continue
			}

			resolved, err := base.Parse(href)
			if err != nil {
				continue
			}
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}

			link := resolved.String()
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}

	collect(hrefDoubleRe)
	collect(hrefSingleRe)

	return links
}

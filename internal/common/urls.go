package common

import (
	"fmt"
	"net/url"
)

// NormalizeURL returns the canonical form of a URL used for deduplication
// and storage keys: the fragment is removed and an empty path is promoted to
// "/". Normalization is idempotent.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no scheme or host", rawURL)
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

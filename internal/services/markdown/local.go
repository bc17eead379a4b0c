package markdown

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

// LocalConverter renders HTML to Markdown in-process. It is the fallback
// when no external conversion service is deployed.
type LocalConverter struct {
	logger arbor.ILogger
}

var _ interfaces.MarkdownConverter = (*LocalConverter)(nil)

func NewLocalConverter(logger arbor.ILogger) *LocalConverter {
	logger.Info().Msg("Using local markdown converter")
	return &LocalConverter{logger: logger}
}

func (c *LocalConverter) Convert(ctx context.Context, htmlContent, pageURL string, metadata map[string]string) (*interfaces.MarkdownResult, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return &interfaces.MarkdownResult{Metadata: metadata}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, common.MarkdownError(err)
	}

	meta := resultMetadata(doc, metadata)

	// Non-content elements turn into garbage markdown
	doc.Find("script, style, noscript").Remove()

	content := doc.Selection
	if body := doc.Find("body"); body.Length() > 0 {
		content = body
	}

	converter := md.NewConverter(pageURL, true, nil)
	markdown := converter.Convert(content)

	if strings.TrimSpace(markdown) == "" && strings.TrimSpace(content.Text()) != "" {
		c.logger.Warn().
			Str("url", pageURL).
			Int("html_length", len(htmlContent)).
			Msg("Markdown conversion produced empty output, stripping tags instead")
		markdown = stripHTMLTags(htmlContent)
	}

	return &interfaces.MarkdownResult{
		Markdown:       markdown,
		ExtractedLinks: extractLinks(doc, pageURL),
		Metadata:       meta,
	}, nil
}

func (c *LocalConverter) Close() error { return nil }

// extractLinks collects anchor targets from the document, resolving
// relative references against the page URL.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// resultMetadata copies the request metadata and annotates it with the
// document title when one is present.
func resultMetadata(doc *goquery.Document, metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		out["title"] = title
	}
	return out
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// stripHTMLTags is the fallback when markdown conversion yields nothing.
func stripHTMLTags(htmlStr string) string {
	stripped := tagPattern.ReplaceAllString(htmlStr, "")
	cleaned := spacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

package interfaces

import "context"

// MarkdownResult is the converter output. ExtractedLinks may be used as an
// additional link source; the crawler's own extraction is authoritative.
type MarkdownResult struct {
	Markdown       string
	ExtractedLinks []string
	Metadata       map[string]string
}

// MarkdownConverter renders HTML to Markdown.
type MarkdownConverter interface {
	Convert(ctx context.Context, htmlContent, url string, metadata map[string]string) (*MarkdownResult, error)
	Close() error
}

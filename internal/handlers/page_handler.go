package handlers

import (
	"bytes"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// PageHandler handles page API requests, including the stored HTML and
// markdown artifacts.
type PageHandler struct {
	pages    interfaces.PageStore
	objects  interfaces.ObjectStore
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewPageHandler creates a new page handler
func NewPageHandler(pages interfaces.PageStore, objects interfaces.ObjectStore, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		pages:   pages,
		objects: objects,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		logger: logger,
	}
}

// GetPageHandler returns a single page by ID
// GET /api/pages/{id}
func (h *PageHandler) GetPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pageID := pathSegment(r, 2)
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return
	}

	page, err := h.pages.Get(ctx, pageID)
	if err != nil {
		h.logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to get page")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// GetPageHTMLHandler serves the stored raw HTML for a page
// GET /api/pages/{id}/html
func (h *PageHandler) GetPageHTMLHandler(w http.ResponseWriter, r *http.Request) {
	content, _, ok := h.loadArtifact(w, r, artifactHTML)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

// GetPageMarkdownHandler serves the stored markdown for a page
// GET /api/pages/{id}/markdown
func (h *PageHandler) GetPageMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	content, _, ok := h.loadArtifact(w, r, artifactMarkdown)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(content)
}

// PreviewPageHandler renders the stored markdown back to HTML
// GET /api/pages/{id}/preview
func (h *PageHandler) PreviewPageHandler(w http.ResponseWriter, r *http.Request) {
	content, page, ok := h.loadArtifact(w, r, artifactMarkdown)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.markdown.Convert(content, &buf); err != nil {
		h.logger.Error().Err(err).Str("page_id", page.ID).Msg("Failed to render markdown preview")
		WriteError(w, http.StatusInternalServerError, "Failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

type artifactKind string

const (
	artifactHTML     artifactKind = "html"
	artifactMarkdown artifactKind = "markdown"
)

// loadArtifact resolves the page from the request path and fetches the
// requested blob from object storage. On failure it writes the error
// response and returns ok=false.
func (h *PageHandler) loadArtifact(w http.ResponseWriter, r *http.Request, kind artifactKind) ([]byte, *models.Page, bool) {
	ctx := r.Context()

	pageID := pathSegment(r, 2)
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return nil, nil, false
	}

	page, err := h.pages.Get(ctx, pageID)
	if err != nil {
		h.logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to get page")
		WriteAppError(w, err)
		return nil, nil, false
	}

	storagePath := page.HTMLStoragePath
	if kind == artifactMarkdown {
		storagePath = page.MarkdownStoragePath
	}
	if storagePath == nil || *storagePath == "" {
		WriteError(w, http.StatusNotFound, string(kind)+" content not available for this page")
		return nil, nil, false
	}

	content, err := h.objects.GetObject(ctx, *storagePath)
	if err != nil {
		h.logger.Error().Err(err).
			Str("page_id", pageID).
			Str("path", *storagePath).
			Msg("Failed to fetch page artifact")
		WriteAppError(w, err)
		return nil, nil, false
	}

	return content, page, true
}

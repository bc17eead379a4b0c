package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

const selectPageSQL = `
SELECT id, job_id, url, normalized_url, content_hash, http_status,
       http_headers, crawled_at, html_storage_path, markdown_storage_path,
       title, metadata, error_message, depth, parent_url
FROM pages`

// PageStore persists fetched pages in Postgres.
type PageStore struct {
	pool *pgxpool.Pool
}

var _ interfaces.PageStore = (*PageStore)(nil)

// NewPageStore builds a page store over the shared pool.
func NewPageStore(store *Store) *PageStore {
	return &PageStore{pool: store.pool}
}

func (s *PageStore) Create(ctx context.Context, page *models.Page) error {
	const query = `
INSERT INTO pages (
	id, job_id, url, normalized_url, content_hash, http_status,
	http_headers, crawled_at, html_storage_path, markdown_storage_path,
	title, metadata, error_message, depth, parent_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		page.ID, page.JobID, page.URL, page.NormalizedURL, nullIfEmpty(page.ContentHash),
		page.HTTPStatus, page.Headers, page.CrawledAt,
		page.HTMLStoragePath, page.MarkdownStoragePath,
		page.Title, page.Metadata, page.ErrorMessage, page.Depth, page.ParentURL,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	return nil
}

func (s *PageStore) Get(ctx context.Context, id string) (*models.Page, error) {
	row := s.pool.QueryRow(ctx, selectPageSQL+" WHERE id = $1", id)
	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFoundf("page %s not found", id)
		}
		return nil, common.DatabaseError(err)
	}
	return page, nil
}

func (s *PageStore) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*models.Page, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		selectPageSQL+" WHERE job_id = $1 ORDER BY crawled_at DESC LIMIT $2 OFFSET $3",
		jobID, limit, offset)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	pages := make([]*models.Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, common.DatabaseError(err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError(err)
	}
	return pages, nil
}

func (s *PageStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pages WHERE job_id = $1", jobID).Scan(&count)
	if err != nil {
		return 0, common.DatabaseError(err)
	}
	return count, nil
}

func scanPage(row pgx.Row) (*models.Page, error) {
	var page models.Page
	var contentHash *string
	err := row.Scan(
		&page.ID, &page.JobID, &page.URL, &page.NormalizedURL, &contentHash,
		&page.HTTPStatus, &page.Headers, &page.CrawledAt,
		&page.HTMLStoragePath, &page.MarkdownStoragePath,
		&page.Title, &page.Metadata, &page.ErrorMessage, &page.Depth, &page.ParentURL,
	)
	if err != nil {
		return nil, err
	}
	if contentHash != nil {
		page.ContentHash = *contentHash
	}
	return &page, nil
}

// nullIfEmpty maps the hash's empty sentinel to SQL NULL.
func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

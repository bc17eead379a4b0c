package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

const selectJobSQL = `
SELECT id, config_id, status, created_at, updated_at, started_at,
       completed_at, error_message, pages_crawled, pages_failed,
       pages_skipped, worker_id, metadata
FROM jobs`

// JobStore persists jobs and their lifecycle transitions in Postgres.
type JobStore struct {
	pool *pgxpool.Pool
}

var _ interfaces.JobStore = (*JobStore)(nil)

// NewJobStore builds a job store over the shared pool.
func NewJobStore(store *Store) *JobStore {
	return &JobStore{pool: store.pool}
}

func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	const query = `
INSERT INTO jobs (
	id, config_id, status, created_at, updated_at, started_at,
	completed_at, error_message, pages_crawled, pages_failed,
	pages_skipped, worker_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.ConfigID, string(job.Status), job.CreatedAt, job.UpdatedAt,
		job.StartedAt, job.CompletedAt, job.ErrorMessage,
		job.PagesCrawled, job.PagesFailed, job.PagesSkipped,
		job.WorkerID, job.Metadata,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, selectJobSQL+" WHERE id = $1", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFoundf("job %s not found", id)
		}
		return nil, common.DatabaseError(err)
	}
	return job, nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, error) {
	where, args := jobFilters(opts)

	limit := defaultListLimit
	offset := 0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			offset = opts.Offset
		}
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectJobSQL, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.DatabaseError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError(err)
	}
	return jobs, nil
}

func (s *JobStore) Count(ctx context.Context, opts *interfaces.ListOptions) (int, error) {
	where, args := jobFilters(opts)

	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM jobs"+where, args...).Scan(&count)
	if err != nil {
		return 0, common.DatabaseError(err)
	}
	return count, nil
}

func (s *JobStore) Update(ctx context.Context, job *models.Job) error {
	const query = `
UPDATE jobs
SET status = $2, updated_at = $3, started_at = $4, completed_at = $5,
    error_message = $6, pages_crawled = $7, pages_failed = $8,
    pages_skipped = $9, worker_id = $10, metadata = $11
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.UpdatedAt, job.StartedAt, job.CompletedAt,
		job.ErrorMessage, job.PagesCrawled, job.PagesFailed,
		job.PagesSkipped, job.WorkerID, job.Metadata,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundf("job %s not found", job.ID)
	}
	return nil
}

func (s *JobStore) GetStatus(ctx context.Context, id string) (models.JobStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, "SELECT status FROM jobs WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NotFoundf("job %s not found", id)
		}
		return "", common.DatabaseError(err)
	}
	return models.JobStatus(status), nil
}

func (s *JobStore) LatestFor(ctx context.Context, configID string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		selectJobSQL+" WHERE config_id = $1 ORDER BY created_at DESC LIMIT 1",
		configID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, common.DatabaseError(err)
	}
	return job, nil
}

// jobFilters builds the WHERE clause for the non-zero filters, numbering
// placeholders from $1.
func jobFilters(opts *interfaces.ListOptions) (string, []interface{}) {
	if opts == nil {
		return "", nil
	}

	var clauses []string
	var args []interface{}
	if opts.Status != "" {
		args = append(args, opts.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.ConfigID != "" {
		args = append(args, opts.ConfigID)
		clauses = append(clauses, fmt.Sprintf("config_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var job models.Job
	var status string
	err := row.Scan(
		&job.ID, &job.ConfigID, &status, &job.CreatedAt, &job.UpdatedAt,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage,
		&job.PagesCrawled, &job.PagesFailed, &job.PagesSkipped,
		&job.WorkerID, &job.Metadata,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	return &job, nil
}

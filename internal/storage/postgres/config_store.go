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

const defaultListLimit = 50

const selectConfigSQL = `
SELECT id, name, description, base_url, include_patterns, exclude_patterns,
       max_depth, max_pages_per_job, respect_robots_txt, user_agent,
       request_delay_ms, max_concurrent_requests, schedule, headers,
       active, created_at, updated_at
FROM scraper_configs`

// ConfigStore persists scraper configurations in Postgres.
type ConfigStore struct {
	pool *pgxpool.Pool
}

var _ interfaces.ConfigStore = (*ConfigStore)(nil)

// NewConfigStore builds a config store over the shared pool.
func NewConfigStore(store *Store) *ConfigStore {
	return &ConfigStore{pool: store.pool}
}

func (s *ConfigStore) Create(ctx context.Context, config *models.ScraperConfig) error {
	const query = `
INSERT INTO scraper_configs (
	id, name, description, base_url, include_patterns, exclude_patterns,
	max_depth, max_pages_per_job, respect_robots_txt, user_agent,
	request_delay_ms, max_concurrent_requests, schedule, headers,
	active, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.pool.Exec(ctx, query,
		config.ID, config.Name, config.Description, config.BaseURL,
		emptyIfNilSlice(config.IncludePatterns), emptyIfNilSlice(config.ExcludePatterns),
		config.MaxDepth, config.MaxPagesPerJob, config.RespectRobotsTxt, config.UserAgent,
		config.RequestDelayMs, config.MaxConcurrentRequests, config.Schedule, emptyIfNilMap(config.Headers),
		config.Active, config.CreatedAt, config.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	return nil
}

func (s *ConfigStore) Get(ctx context.Context, id string) (*models.ScraperConfig, error) {
	row := s.pool.QueryRow(ctx, selectConfigSQL+" WHERE id = $1", id)
	config, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFoundf("config %s not found", id)
		}
		return nil, common.DatabaseError(err)
	}
	return config, nil
}

func (s *ConfigStore) List(ctx context.Context, limit, offset int) ([]*models.ScraperConfig, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, selectConfigSQL+" ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

func (s *ConfigStore) ListActiveScheduled(ctx context.Context) ([]*models.ScraperConfig, error) {
	rows, err := s.pool.Query(ctx, selectConfigSQL+" WHERE active AND schedule IS NOT NULL ORDER BY created_at")
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

func (s *ConfigStore) Update(ctx context.Context, config *models.ScraperConfig) error {
	const query = `
UPDATE scraper_configs
SET name = $2, description = $3, base_url = $4, include_patterns = $5,
    exclude_patterns = $6, max_depth = $7, max_pages_per_job = $8,
    respect_robots_txt = $9, user_agent = $10, request_delay_ms = $11,
    max_concurrent_requests = $12, schedule = $13, headers = $14,
    active = $15, updated_at = $16
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		config.ID, config.Name, config.Description, config.BaseURL,
		emptyIfNilSlice(config.IncludePatterns), emptyIfNilSlice(config.ExcludePatterns),
		config.MaxDepth, config.MaxPagesPerJob,
		config.RespectRobotsTxt, config.UserAgent, config.RequestDelayMs,
		config.MaxConcurrentRequests, config.Schedule, emptyIfNilMap(config.Headers),
		config.Active, config.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundf("config %s not found", config.ID)
	}
	return nil
}

func (s *ConfigStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM scraper_configs WHERE id = $1", id)
	if err != nil {
		return common.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundf("config %s not found", id)
	}
	return nil
}

func scanConfig(row pgx.Row) (*models.ScraperConfig, error) {
	var config models.ScraperConfig
	err := row.Scan(
		&config.ID, &config.Name, &config.Description, &config.BaseURL,
		&config.IncludePatterns, &config.ExcludePatterns,
		&config.MaxDepth, &config.MaxPagesPerJob, &config.RespectRobotsTxt, &config.UserAgent,
		&config.RequestDelayMs, &config.MaxConcurrentRequests, &config.Schedule, &config.Headers,
		&config.Active, &config.CreatedAt, &config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func collectConfigs(rows pgx.Rows) ([]*models.ScraperConfig, error) {
	configs := make([]*models.ScraperConfig, 0)
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, common.DatabaseError(err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError(err)
	}
	return configs, nil
}

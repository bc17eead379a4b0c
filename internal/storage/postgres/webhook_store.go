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

const selectWebhookSQL = `
SELECT id, config_id, url, events, is_active, created_at, updated_at
FROM webhooks`

// WebhookStore persists webhook registrations in Postgres.
type WebhookStore struct {
	pool *pgxpool.Pool
}

var _ interfaces.WebhookStore = (*WebhookStore)(nil)

// NewWebhookStore builds a webhook store over the shared pool.
func NewWebhookStore(store *Store) *WebhookStore {
	return &WebhookStore{pool: store.pool}
}

func (s *WebhookStore) Create(ctx context.Context, webhook *models.Webhook) error {
	const query = `
INSERT INTO webhooks (id, config_id, url, events, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		webhook.ID, webhook.ConfigID, webhook.URL, emptyIfNilSlice(webhook.Events),
		webhook.IsActive, webhook.CreatedAt, webhook.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	return nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (*models.Webhook, error) {
	row := s.pool.QueryRow(ctx, selectWebhookSQL+" WHERE id = $1", id)
	webhook, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFoundf("webhook %s not found", id)
		}
		return nil, common.DatabaseError(err)
	}
	return webhook, nil
}

func (s *WebhookStore) ListByConfig(ctx context.Context, configID string) ([]*models.Webhook, error) {
	rows, err := s.pool.Query(ctx, selectWebhookSQL+" WHERE config_id = $1 ORDER BY created_at", configID)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

// ListActiveForEvent returns the active webhooks for a config that subscribe
// to the event. An empty events array subscribes to everything.
func (s *WebhookStore) ListActiveForEvent(ctx context.Context, configID, event string) ([]*models.Webhook, error) {
	const query = selectWebhookSQL + `
WHERE config_id = $1
  AND is_active
  AND (jsonb_array_length(events) = 0 OR events ? $2)
ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, configID, event)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func (s *WebhookStore) Update(ctx context.Context, webhook *models.Webhook) error {
	const query = `
UPDATE webhooks
SET url = $2, events = $3, is_active = $4, updated_at = $5
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		webhook.ID, webhook.URL, emptyIfNilSlice(webhook.Events),
		webhook.IsActive, webhook.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundf("webhook %s not found", webhook.ID)
	}
	return nil
}

func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return common.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundf("webhook %s not found", id)
	}
	return nil
}

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var webhook models.Webhook
	err := row.Scan(
		&webhook.ID, &webhook.ConfigID, &webhook.URL, &webhook.Events,
		&webhook.IsActive, &webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

func collectWebhooks(rows pgx.Rows) ([]*models.Webhook, error) {
	webhooks := make([]*models.Webhook, 0)
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, common.DatabaseError(err)
		}
		webhooks = append(webhooks, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError(err)
	}
	return webhooks, nil
}

package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the connection pool shared by the table stores.
type Store struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, databaseURL string, maxConns int32, logger arbor.ILogger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, common.DatabaseError(fmt.Errorf("parse database url: %w", err))
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, common.DatabaseError(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, common.DatabaseError(fmt.Errorf("ping: %w", err))
	}

	logger.Info().
		Str("database", poolConfig.ConnConfig.Database).
		Str("host", poolConfig.ConnConfig.Host).
		Msg("Connected to database")
	return &Store{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent, so
// running it on each start is safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(schemaSQL) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return common.DatabaseError(fmt.Errorf("apply schema: %w", err))
		}
	}
	s.logger.Info().Msg("Database schema applied")
	return nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// schemaStatements splits the schema into individual statements. The schema
// contains no function bodies, so splitting on semicolons is sound.
func schemaStatements(schema string) []string {
	var statements []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// emptyIfNilSlice keeps NOT NULL jsonb array columns valid: a nil slice
// would otherwise encode as SQL NULL.
func emptyIfNilSlice(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// emptyIfNilMap is the map counterpart of emptyIfNilSlice.
func emptyIfNilMap(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}

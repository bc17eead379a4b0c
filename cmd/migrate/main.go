// Command migrate applies the database schema and exits. The server
// migrates on startup as well, so this exists for deploy pipelines
// that run schema changes before rolling new instances.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/storage/postgres"
)

func main() {
	databaseURL := flag.String("database-url", "", "Postgres connection string (defaults to FIRMATA_DATABASE_URL or DATABASE_URL)")
	timeout := flag.Duration("timeout", 60*time.Second, "Connection and migration timeout")
	flag.Parse()

	logger := arbor.NewLogger()

	url := *databaseURL
	if url == "" {
		url = os.Getenv("FIRMATA_DATABASE_URL")
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		logger.Fatal().Msg("No database URL provided: set -database-url, FIRMATA_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := postgres.New(ctx, url, 2, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		os.Exit(1)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		logger.Fatal().Err(err).Msg("Migration failed")
		os.Exit(1)
	}

	store.Close()
	logger.Info().Msg("Database schema up to date")
}

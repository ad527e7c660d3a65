package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/transaction-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/transaction-analyzer/internal/infra/sqlite"
	"github.com/dvloznov/transaction-analyzer/internal/logger"
	"github.com/dvloznov/transaction-analyzer/migrations"
)

var (
	target     = flag.String("target", "sqlite", "Record store to migrate: sqlite or bigquery")
	sqlitePath = flag.String("sqlite-path", envOr("SQLITE_PATH", "data/uploads.db"), "SQLite database file")
	projectID  = flag.String("project", os.Getenv("BQ_PROJECT"), "GCP project ID (required for bigquery)")
	datasetID  = flag.String("dataset", envOr("BQ_DATASET", "transactions"), "BigQuery dataset ID")
	appliedBy  = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
)

func main() {
	flag.Parse()

	log := logger.New()

	switch *target {
	case "sqlite":
		migrateSQLite(log)
	case "bigquery":
		migrateBigQuery(log)
	default:
		log.Fatal().Str("target", *target).Msg("Unknown -target, expected sqlite or bigquery")
	}
}

func migrateSQLite(log zerolog.Logger) {
	db, err := sqlite.Open(*sqlitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := sqlite.Migrate(db, log.With().Str("path", *sqlitePath).Logger()); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
}

func migrateBigQuery(log zerolog.Logger) {
	// Validate required flags
	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	client, err := infraBQ.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	m := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy, log)
	n, err := m.Up(ctx, migrations.BigQuery, "bigquery")
	if err != nil {
		log.Fatal().Err(err).Int("applied", n).Msg("Migration failed")
	}

	if n == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", n).Msg("Successfully applied migrations")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Package migrations embeds the schema migrations for the record stores.
package migrations

import "embed"

// SQLite holds golang-migrate files under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// BigQuery holds NNNN_name.sql files under bigquery/ with {{PROJECT_ID}} and
// {{DATASET_ID}} placeholders.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS

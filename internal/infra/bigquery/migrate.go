package bigquery

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migrator applies NNNN_name.sql files to a dataset and tracks them in
// schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator creates a migrator for projectID.datasetID.
func NewMigrator(client *bigquery.Client, projectID, datasetID, appliedBy string, log zerolog.Logger) *Migrator {
	return &Migrator{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		appliedBy: appliedBy,
		log:       log,
	}
}

// Up applies every migration in dir of fsys that is not yet recorded and
// returns how many ran.
func (m *Migrator) Up(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	migrations, err := ReadMigrations(fsys, dir, m.projectID, m.datasetID)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	appliedVersions := make(map[int]bool)
	for _, am := range applied {
		appliedVersions[am.Version] = true
	}

	appliedCount := 0
	for _, migration := range migrations {
		log := m.log.With().Int("version", migration.Version).Str("name", migration.Name).Logger()
		if appliedVersions[migration.Version] {
			log.Debug().Msg("Migration already applied")
			continue
		}

		if _, err := runDML(ctx, m.client.Query(migration.SQL)); err != nil {
			return appliedCount, fmt.Errorf("execute migration %04d_%s: %w", migration.Version, migration.Name, err)
		}
		if err := m.recordMigration(ctx, migration); err != nil {
			return appliedCount, fmt.Errorf("record migration %04d_%s: %w", migration.Version, migration.Name, err)
		}

		log.Info().Msg("Migration applied")
		appliedCount++
	}

	return appliedCount, nil
}

// ReadMigrations reads all migration files in dir, substituting the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
func ReadMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+file.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		// Checksum covers the file before substitution so the same
		// migration matches across projects.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.projectID, m.datasetID)

	_, err := runDML(ctx, m.client.Query(sql))
	return err
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, m.projectID, m.datasetID)

	it, err := m.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

func (m *Migrator) recordMigration(ctx context.Context, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.projectID, m.datasetID)

	q := m.client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}

	_, err := runDML(ctx, q)
	return err
}

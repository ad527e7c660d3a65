package bigquery

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/dvloznov/transaction-analyzer/migrations"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, "0001", "init_schema_migrations"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if tt.valid && (m[1] != tt.version || m[2] != tt.name) {
				t.Errorf("match = %v", m)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"bq/0002_second.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"bq/0001_first.sql":   {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"bq/README.md":        {Data: []byte("ignored")},
		"bq/0003_skip.sql.go": {Data: []byte("ignored")},
	}

	got, err := ReadMigrations(fsys, "bq", "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadMigrations() returned %d migrations, want 2", len(got))
	}
	if got[0].Version != 1 || got[1].Version != 2 {
		t.Errorf("versions = %d, %d", got[0].Version, got[1].Version)
	}
	if !strings.Contains(got[0].SQL, "`proj.ds.a`") {
		t.Errorf("SQL = %s", got[0].SQL)
	}

	// Checksums ignore the target project and dataset.
	other, _ := ReadMigrations(fsys, "bq", "p2", "d2")
	if other[0].Checksum != got[0].Checksum {
		t.Error("checksum should not depend on placeholders")
	}
	if got[0].Checksum == got[1].Checksum {
		t.Error("different files should have different checksums")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := ReadMigrations(migrations.BigQuery, "bigquery", "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no embedded BigQuery migrations")
	}

	var found bool
	for _, m := range got {
		if strings.Contains(m.SQL, "`proj.ds.upload_records`") {
			found = true
		}
	}
	if !found {
		t.Error("no migration creates upload_records")
	}
}

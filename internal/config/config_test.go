package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(mapEnv(nil))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.RecordStore != RecordStoreMemory || cfg.SourceStore != SourceStoreLocal || cfg.Queue != QueueMemory {
		t.Errorf("backends = %s/%s/%s", cfg.RecordStore, cfg.SourceStore, cfg.Queue)
	}
	if cfg.Workers != 5 || cfg.QueueBuffer != 100 || cfg.MaxRetries != 3 {
		t.Errorf("queue settings = %d/%d/%d", cfg.Workers, cfg.QueueBuffer, cfg.MaxRetries)
	}
	if cfg.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %v", cfg.RetryBackoff)
	}
	if cfg.RecordCacheTTL != 0 {
		t.Errorf("RecordCacheTTL = %v, want disabled", cfg.RecordCacheTTL)
	}
	if cfg.MaxUploadBytes != 32<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(mapEnv(map[string]string{
		"PORT":             "9000",
		"RECORD_STORE":     "SQLite",
		"SQLITE_PATH":      "/tmp/x.db",
		"QUEUE":            "redis",
		"REDIS_ADDR":       "redis:6379",
		"REDIS_DB":         "2",
		"WORKERS":          "8",
		"RECORD_CACHE_TTL": "30s",
		"SOURCE_STORE":     "gcs",
		"GCS_BUCKET":       "uploads",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Port != "9000" || cfg.RecordStore != RecordStoreSQLite || cfg.SQLitePath != "/tmp/x.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Queue != QueueRedis || cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 2 || cfg.Workers != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RecordCacheTTL != 30*time.Second {
		t.Errorf("RecordCacheTTL = %v", cfg.RecordCacheTTL)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad integer", env: map[string]string{"WORKERS": "many"}, wantErr: "WORKERS: invalid integer"},
		{name: "bad duration", env: map[string]string{"RECORD_CACHE_TTL": "soon"}, wantErr: "RECORD_CACHE_TTL: invalid duration"},
		{name: "unknown store", env: map[string]string{"RECORD_STORE": "postgres"}, wantErr: `unknown RECORD_STORE "postgres"`},
		{name: "unknown queue", env: map[string]string{"QUEUE": "kafka"}, wantErr: `unknown QUEUE "kafka"`},
		{name: "bigquery without project", env: map[string]string{"RECORD_STORE": "bigquery"}, wantErr: "BQ_PROJECT is required"},
		{name: "gcs without bucket", env: map[string]string{"SOURCE_STORE": "gcs"}, wantErr: "GCS_BUCKET is required"},
		{name: "zero workers", env: map[string]string{"WORKERS": "0"}, wantErr: "WORKERS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(mapEnv(tt.env))
			if err == nil {
				t.Fatal("FromEnv() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TXA_TEST_ONLY=1\nPORT=7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "6060")
	t.Setenv("TXA_TEST_ONLY", "")
	os.Unsetenv("TXA_TEST_ONLY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "6060" {
		t.Errorf("Port = %s, the environment should win over the file", cfg.Port)
	}
	if os.Getenv("TXA_TEST_ONLY") != "1" {
		t.Error("variables from the file should be loaded")
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

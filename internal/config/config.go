// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by RECORD_STORE, SOURCE_STORE and QUEUE.
const (
	RecordStoreMemory   = "memory"
	RecordStoreSQLite   = "sqlite"
	RecordStoreBigQuery = "bigquery"

	SourceStoreLocal = "local"
	SourceStoreGCS   = "gcs"

	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config holds every setting the binaries need.
type Config struct {
	Port     string
	LogLevel string

	RecordStore    string
	SQLitePath     string
	BQProject      string
	BQDataset      string
	RecordCacheTTL time.Duration

	SourceStore    string
	UploadDir      string
	GCSBucket      string
	MaxUploadBytes int64

	Queue         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisQueueKey string
	Workers       int
	QueueBuffer   int
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Load seeds the environment from a .env file when one exists, then reads
// the configuration from it. Variables already set win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and validating
// backend names.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Port:     e.str("PORT", "8080"),
		LogLevel: e.str("LOG_LEVEL", "info"),

		RecordStore:    strings.ToLower(e.str("RECORD_STORE", RecordStoreMemory)),
		SQLitePath:     e.str("SQLITE_PATH", "data/uploads.db"),
		BQProject:      e.str("BQ_PROJECT", ""),
		BQDataset:      e.str("BQ_DATASET", "transactions"),
		RecordCacheTTL: e.duration("RECORD_CACHE_TTL", 0),

		SourceStore:    strings.ToLower(e.str("SOURCE_STORE", SourceStoreLocal)),
		UploadDir:      e.str("UPLOAD_DIR", "data/uploads"),
		GCSBucket:      e.str("GCS_BUCKET", ""),
		MaxUploadBytes: int64(e.int("MAX_UPLOAD_BYTES", 32<<20)),

		Queue:         strings.ToLower(e.str("QUEUE", QueueMemory)),
		RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.int("REDIS_DB", 0),
		RedisQueueKey: e.str("REDIS_QUEUE_KEY", "txanalysis:jobs"),
		Workers:       e.int("WORKERS", 5),
		QueueBuffer:   e.int("QUEUE_BUFFER", 100),
		MaxRetries:    e.int("MAX_RETRIES", 3),
		RetryBackoff:  e.duration("RETRY_BACKOFF", time.Second),
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	var errs []error

	switch c.RecordStore {
	case RecordStoreMemory, RecordStoreSQLite:
	case RecordStoreBigQuery:
		if c.BQProject == "" {
			errs = append(errs, errors.New("BQ_PROJECT is required when RECORD_STORE=bigquery"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore))
	}

	switch c.SourceStore {
	case SourceStoreLocal:
	case SourceStoreGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when SOURCE_STORE=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SOURCE_STORE %q", c.SourceStore))
	}

	switch c.Queue {
	case QueueMemory, QueueRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE %q", c.Queue))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers))
	}
	if c.QueueBuffer < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_BUFFER must not be negative, got %d", c.QueueBuffer))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}

	return errors.Join(errs...)
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

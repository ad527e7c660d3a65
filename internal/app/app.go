// Package app wires configuration to concrete stores, queues and services.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/config"
	infraBQ "github.com/dvloznov/transaction-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/transaction-analyzer/internal/infra/cache"
	"github.com/dvloznov/transaction-analyzer/internal/infra/gcs"
	"github.com/dvloznov/transaction-analyzer/internal/infra/localfs"
	"github.com/dvloznov/transaction-analyzer/internal/infra/memory"
	"github.com/dvloznov/transaction-analyzer/internal/infra/sqlite"
	"github.com/dvloznov/transaction-analyzer/internal/jobs"
	"github.com/dvloznov/transaction-analyzer/internal/jobs/inmemory"
	"github.com/dvloznov/transaction-analyzer/internal/jobs/redisq"
	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Records   uploads.RecordStore
	Sources   uploads.SourceStore
	Queue     jobs.Queue
	Service   *uploads.Service
	Lifecycle *uploads.Lifecycle

	closers []func() error
}

// New builds every component named by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	var err error
	if a.Records, err = a.recordStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Sources, err = a.sourceStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Queue, err = a.queue(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Service = uploads.NewService(a.Records, a.Sources, a.Queue, log)
	a.Lifecycle = uploads.NewLifecycle(a.Records, a.Sources, log)
	return a, nil
}

// Close releases every component that was opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) recordStore(ctx context.Context) (uploads.RecordStore, error) {
	var store uploads.RecordStore

	switch a.Config.RecordStore {
	case config.RecordStoreMemory:
		store = memory.NewRecordStore()

	case config.RecordStoreSQLite:
		db, err := sqlite.Open(a.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := sqlite.Migrate(db, a.Log); err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		store = sqlite.NewRecordStore(db)

	case config.RecordStoreBigQuery:
		client, err := infraBQ.NewClient(ctx, a.Config.BQProject)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store = infraBQ.NewRecordRepository(client, a.Config.BQProject, a.Config.BQDataset)

	default:
		return nil, fmt.Errorf("record store: unknown backend %q", a.Config.RecordStore)
	}

	a.Log.Info().Str("backend", a.Config.RecordStore).Msg("Record store ready")

	if a.Config.RecordCacheTTL > 0 {
		a.Log.Info().Dur("ttl", a.Config.RecordCacheTTL).Msg("Record cache enabled")
		return cache.NewRecordStore(store, a.Config.RecordCacheTTL), nil
	}
	return store, nil
}

func (a *App) sourceStore(ctx context.Context) (uploads.SourceStore, error) {
	switch a.Config.SourceStore {
	case config.SourceStoreLocal:
		store, err := localfs.NewSourceStore(a.Config.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("source store: %w", err)
		}
		return store, nil

	case config.SourceStoreGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("source store: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.NewSourceStore(client, a.Config.GCSBucket), nil
	}
	return nil, fmt.Errorf("source store: unknown backend %q", a.Config.SourceStore)
}

func (a *App) queue(ctx context.Context) (jobs.Queue, error) {
	policy := jobs.RetryPolicy{MaxRetries: a.Config.MaxRetries, Backoff: a.Config.RetryBackoff}

	switch a.Config.Queue {
	case config.QueueMemory:
		q := inmemory.NewQueue(a.Config.QueueBuffer,
			inmemory.WithWorkers(a.Config.Workers),
			inmemory.WithRetryPolicy(policy),
			inmemory.WithLogger(a.Log),
		)
		a.closers = append(a.closers, q.Close)
		return q, nil

	case config.QueueRedis:
		client, err := redisq.NewClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		q := redisq.New(client,
			redisq.WithKey(a.Config.RedisQueueKey),
			redisq.WithWorkers(a.Config.Workers),
			redisq.WithRetryPolicy(policy),
			redisq.WithLogger(a.Log),
		)
		a.closers = append(a.closers, q.Close)
		return q, nil
	}
	return nil, fmt.Errorf("queue: unknown backend %q", a.Config.Queue)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/transaction-analyzer/internal/app"
	"github.com/dvloznov/transaction-analyzer/internal/config"
	"github.com/dvloznov/transaction-analyzer/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.Queue == config.QueueMemory {
		log.Warn().Msg("QUEUE=memory: this worker only sees jobs published in its own process")
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise components")
	}
	defer a.Close()

	log.Info().
		Str("queue", cfg.Queue).
		Str("record_store", cfg.RecordStore).
		Int("workers", cfg.Workers).
		Msg("Worker service started, waiting for jobs...")

	// Consume blocks until the signal context is cancelled
	if err := a.Queue.Consume(logger.WithContext(ctx, log), a.Lifecycle.Handle); err != nil {
		log.Error().Err(err).Msg("Job consumer stopped with error")
	}

	log.Info().Msg("Shutting down worker service...")

	// Close the queue and wait for in-flight jobs
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

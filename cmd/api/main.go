package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/api"
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

	// Parse command-line flags
	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		bucket  = flag.String("bucket", cfg.GCSBucket, "GCS bucket for uploaded CSV files (or set GCS_BUCKET env)")
		consume = flag.Bool("consume", true, "Run the analysis consumer in this process")
	)
	flag.Parse()

	if *bucket != cfg.GCSBucket {
		cfg.GCSBucket = *bucket
		cfg.SourceStore = config.SourceStoreGCS
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise components")
	}

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if *consume {
		go func() {
			log.Info().Int("workers", cfg.Workers).Msg("Starting job worker")
			if err := a.Queue.Consume(workerCtx, a.Lifecycle.Handle); err != nil {
				log.Error().Err(err).Msg("Job worker stopped with error")
			}
		}()
	} else {
		log.Info().Msg("In-process consumer disabled; run cmd/worker against the shared queue")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      api.NewRouter(a.Service, cfg.MaxUploadBytes, log),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel worker context, then close the queue and stores
	cancelWorker()
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close components")
	}

	log.Info().Msg("Server exited")
}

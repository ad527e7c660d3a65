package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/analysis"
	"github.com/dvloznov/transaction-analyzer/internal/app"
	"github.com/dvloznov/transaction-analyzer/internal/config"
	"github.com/dvloznov/transaction-analyzer/internal/logger"
	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "analyze":
		runAnalyze(log)
	case "upload":
		runUpload(cfg, log)
	case "status":
		runStatus(cfg, log)
	case "list":
		runList(cfg, log)
	case "reanalyze":
		runReanalyze(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Transaction Analyzer CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze    Analyse a local CSV file and print the report")
	fmt.Println("  upload     Submit a CSV file for asynchronous analysis")
	fmt.Println("  status     Print the status and result of an upload")
	fmt.Println("  list       List all uploads")
	fmt.Println("  reanalyze  Queue another analysis of an existing upload")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runAnalyze(log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli analyze -file PATH")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot open file")
	}
	defer f.Close()

	report, err := analysis.Analyze(f)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Analysis failed")
	}

	printJSON(os.Stdout, report)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local CSV file")
	wait := fs.Bool("wait", false, "Run the analysis in this process and wait for the result")
	timeout := fs.Duration("timeout", 5*time.Minute, "Maximum time to wait with -wait")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH [-wait]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := mustApp(ctx, cfg, log)
	defer a.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot open file")
	}
	defer f.Close()

	if *wait {
		go func() {
			if err := a.Queue.Consume(ctx, a.Lifecycle.Handle); err != nil {
				log.Error().Err(err).Msg("Consumer stopped with error")
			}
		}()
	}

	rec, err := a.Service.Submit(ctx, filepath.Base(*filePath), f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	if !*wait {
		fmt.Printf("Upload %s created with status %s\n", rec.ID, rec.Status)
		return
	}

	done, err := waitTerminal(ctx, a.Service, rec.ID)
	if err != nil {
		log.Fatal().Err(err).Str("upload_id", rec.ID).Msg("Waiting for analysis failed")
	}
	printJSON(os.Stdout, done)
}

func runStatus(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	id := fs.String("id", "", "Upload ID")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: -id is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	a := mustApp(ctx, cfg, log)
	defer a.Close()

	rec, err := a.Service.Get(ctx, *id)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load upload")
	}
	printJSON(os.Stdout, rec)
}

func runList(cfg *config.Config, log zerolog.Logger) {
	ctx := logger.WithContext(context.Background(), log)
	a := mustApp(ctx, cfg, log)
	defer a.Close()

	records, err := a.Service.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list uploads")
	}

	fmt.Printf("\n=== Uploads (%d) ===\n", len(records))
	for i, rec := range records {
		fmt.Printf("\n%d. %s\n", i+1, rec.ID)
		fmt.Printf("   File:     %s\n", rec.Filename)
		fmt.Printf("   Status:   %s\n", rec.Status)
		fmt.Printf("   Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
		if rec.Result != nil && rec.Result.Error != "" {
			fmt.Printf("   Error:    %s\n", rec.Result.Error)
		}
	}
	fmt.Println()
}

func runReanalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reanalyze", flag.ExitOnError)
	id := fs.String("id", "", "Upload ID to analyse again")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Error: -id is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	a := mustApp(ctx, cfg, log)
	defer a.Close()

	if err := a.Service.Reanalyze(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Re-analysis failed")
	}
	fmt.Printf("Re-analysis of %s queued.\n", *id)
}

func mustApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app.App {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise components")
	}
	return a
}

// waitTerminal polls until the upload reaches a terminal status.
func waitTerminal(ctx context.Context, svc *uploads.Service, id string) (*uploads.Record, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		rec, err := svc.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.Status.Terminal() {
			return rec, nil
		}

		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

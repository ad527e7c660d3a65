package uploads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/analysis"
	"github.com/dvloznov/transaction-analyzer/internal/jobs"
	"github.com/dvloznov/transaction-analyzer/internal/logger"
	"github.com/rs/zerolog"
)

// Lifecycle runs the analysis job for one upload and records its outcome.
type Lifecycle struct {
	records RecordStore
	sources SourceStore
	log     zerolog.Logger
	now     func() time.Time
}

// NewLifecycle wires the lifecycle to its stores.
func NewLifecycle(records RecordStore, sources SourceStore, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		records: records,
		sources: sources,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StartAnalysis marks the record processing if it is still pending, analyses
// its source data and persists exactly one terminal state. A record that
// another run already moved on is never sent back to processing.
//
// On failure the record is saved as failed and the analysis error is
// returned so the queue can apply its own policy. If ctx is cancelled before
// the terminal write the record stays in processing.
func (l *Lifecycle) StartAnalysis(ctx context.Context, uploadID string) error {
	log := logger.ForUpload(l.log, uploadID)

	started, err := l.records.Begin(ctx, uploadID, l.now())
	if err != nil {
		log.Error().Err(err).Msg("Cannot mark upload processing")
		return fmt.Errorf("StartAnalysis: marking processing: %w", err)
	}

	// Loaded after Begin so a concurrent run's terminal write is never
	// replaced by a stale copy.
	rec, err := l.records.Get(ctx, uploadID)
	if err != nil {
		log.Error().Err(err).Msg("Cannot load upload record")
		return fmt.Errorf("StartAnalysis: loading record: %w", err)
	}

	if started {
		log.Info().Str("status", string(rec.Status)).Msg("Analysis started")
	} else {
		log.Warn().Str("status", string(rec.Status)).Msg("Re-running analysis for an upload that already started")
	}

	report, runErr := l.analyze(ctx, rec)

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn().Err(ctxErr).Msg("Analysis aborted before terminal write")
		return fmt.Errorf("StartAnalysis: %w", ctxErr)
	}

	if runErr != nil {
		rec.Fail(runErr, l.now())
		if err := l.records.Save(ctx, rec); err != nil {
			log.Error().Err(err).AnErr("analysis_error", runErr).Msg("Failed to persist failure")
			return errors.Join(
				fmt.Errorf("StartAnalysis: %w", runErr),
				fmt.Errorf("StartAnalysis: persisting failure: %w", err),
			)
		}
		log.Error().Err(runErr).Str("status", string(rec.Status)).Msg("Analysis failed")
		return fmt.Errorf("StartAnalysis: %w", runErr)
	}

	rec.Complete(report, l.now())
	if err := l.records.Save(ctx, rec); err != nil {
		log.Error().Err(err).Msg("Failed to persist report")
		return fmt.Errorf("StartAnalysis: persisting report: %w", err)
	}

	log.Info().
		Str("status", string(rec.Status)).
		Int("total_transactions", report.TotalTransactions).
		Int("outliers", report.Outliers.Count).
		Msg("Analysis completed")
	return nil
}

func (l *Lifecycle) analyze(ctx context.Context, rec *Record) (*analysis.Report, error) {
	src, err := l.sources.Open(ctx, rec.SourceURI)
	if err != nil {
		return nil, fmt.Errorf("opening source data: %w", err)
	}
	defer src.Close()

	return analysis.Analyze(src)
}

// Handle adapts StartAnalysis to jobs.Handler. Missing records and bad input
// are marked permanent; a retry would fail the same way.
func (l *Lifecycle) Handle(ctx context.Context, job *jobs.AnalysisJob) error {
	err := l.StartAnalysis(ctx, job.UploadID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, analysis.ErrParse) || errors.Is(err, analysis.ErrValidation) {
		return jobs.Permanent(err)
	}
	return err
}

package uploads

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/jobs"
	"github.com/dvloznov/transaction-analyzer/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the ingestion and status side of uploads.
type Service struct {
	records   RecordStore
	sources   SourceStore
	publisher jobs.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a new upload service.
func NewService(records RecordStore, sources SourceStore, publisher jobs.Publisher, log zerolog.Logger) *Service {
	return &Service{
		records:   records,
		sources:   sources,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores a CSV file, creates its pending record and enqueues the
// analysis. It returns as soon as the job is queued.
//
// A failure to enqueue is logged and the pending record is still returned.
func (s *Service) Submit(ctx context.Context, filename string, content io.Reader) (*Record, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, ErrNotCSV
	}

	body := bufio.NewReader(content)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyUpload
		}
		return nil, fmt.Errorf("Submit: reading upload: %w", err)
	}

	id := uuid.NewString()
	log := logger.ForUpload(s.log, id)

	uri, err := s.sources.Put(ctx, id, filename, body)
	if err != nil {
		return nil, fmt.Errorf("Submit: storing source: %w", err)
	}

	now := s.now()
	rec := &Record{
		ID:        id,
		Filename:  filename,
		SourceURI: uri,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("Submit: creating record: %w", err)
	}
	log.Info().Str("filename", filename).Str("source_uri", uri).Msg("Upload received")

	if err := s.publisher.Enqueue(ctx, id); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue analysis job")
	} else {
		log.Info().Msg("Analysis job queued")
	}

	return rec, nil
}

// Get returns the current record for id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.records.Get(ctx, id)
}

// List returns every record.
func (s *Service) List(ctx context.Context) ([]*Record, error) {
	return s.records.List(ctx)
}

// Reanalyze enqueues another analysis of an existing upload.
func (s *Service) Reanalyze(ctx context.Context, id string) error {
	if _, err := s.records.Get(ctx, id); err != nil {
		return err
	}
	if err := s.publisher.Enqueue(ctx, id); err != nil {
		return fmt.Errorf("Reanalyze: enqueue: %w", err)
	}
	return nil
}

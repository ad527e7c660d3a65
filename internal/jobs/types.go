package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAnalyzeUpload analyses the CSV behind one upload record.
	JobTypeAnalyzeUpload JobType = "analyze_upload"
)

// AnalysisJob is the unit of work carried by a queue: one upload to analyse.
type AnalysisJob struct {
	// JobID is the unique identifier for this delivery chain.
	JobID string `json:"job_id"`

	// Type is always JobTypeAnalyzeUpload today.
	Type JobType `json:"type"`

	// UploadID is the upload record to analyse.
	UploadID string `json:"upload_id"`

	// EnqueuedAt is when the job was first published.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempt counts deliveries so far, starting at 0.
	Attempt int `json:"attempt"`

	// LastError holds the error of the previous failed attempt.
	LastError string `json:"last_error,omitempty"`
}

// NewAnalysisJob creates a job for uploadID with a fresh job id.
func NewAnalysisJob(uploadID string) *AnalysisJob {
	return &AnalysisJob{
		JobID:      uuid.NewString(),
		Type:       JobTypeAnalyzeUpload,
		UploadID:   uploadID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Handler processes one job. A returned error triggers the queue's retry
// policy unless it is wrapped with Permanent.
type Handler func(ctx context.Context, job *AnalysisJob) error

// Publisher puts upload ids on the queue. Publishing never waits for the
// analysis to run.
type Publisher interface {
	Enqueue(ctx context.Context, uploadID string) error
}

// Consumer runs handler for every delivered job. Consume blocks until ctx is
// cancelled or the queue is closed.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}

// Queue is a transport that can both publish and consume analysis jobs.
type Queue interface {
	Publisher
	Consumer
	Close() error
}

// ErrQueueClosed is returned by operations on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryPolicy decides whether a failed job is re-delivered and when.
type RetryPolicy struct {
	// MaxRetries is the number of re-deliveries after the first attempt.
	MaxRetries int

	// Backoff is multiplied by the attempt number to get the delay.
	Backoff time.Duration
}

// DefaultRetryPolicy retries three times with a linear one second backoff.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Backoff: time.Second}

// ShouldRetry reports whether job should be re-delivered after err.
func (p RetryPolicy) ShouldRetry(job *AnalysisJob, err error) bool {
	return err != nil && !IsPermanent(err) && job.Attempt < p.MaxRetries
}

// Delay returns how long to wait before delivery number attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.Backoff
}

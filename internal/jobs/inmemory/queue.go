package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/jobs"
	"github.com/rs/zerolog"
)

// Queue is an in-memory implementation of jobs.Queue.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
// For multi-instance deployments use the redis-backed queue.
type Queue struct {
	jobChan   chan *jobs.AnalysisJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	workers   int
	policy    jobs.RetryPolicy
	log       zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers started by Consume.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetryPolicy overrides jobs.DefaultRetryPolicy.
func WithRetryPolicy(p jobs.RetryPolicy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithLogger sets the logger used for retry and drop events.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Enqueue blocks.
func NewQueue(bufferSize int, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.AnalysisJob, bufferSize),
		closeChan: make(chan struct{}),
		workers:   5,
		policy:    jobs.DefaultRetryPolicy,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue implements jobs.Publisher.
// It wraps uploadID in a new job and hands it to the workers.
func (q *Queue) Enqueue(ctx context.Context, uploadID string) error {
	return q.publish(ctx, jobs.NewAnalysisJob(uploadID))
}

func (q *Queue) publish(ctx context.Context, job *jobs.AnalysisJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return jobs.ErrQueueClosed
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Consume implements jobs.Consumer.
// It starts the worker goroutines and blocks until ctx is cancelled or the
// queue is closed, then waits for in-flight jobs.
func (q *Queue) Consume(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.wg.Add(q.workers)
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, handler)
	}

	select {
	case <-ctx.Done():
	case <-q.closeChan:
	}
	q.wg.Wait()
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job and applies the retry policy.
func (q *Queue) processJob(ctx context.Context, job *jobs.AnalysisJob, handler jobs.Handler) {
	err := handler(ctx, job)
	if err == nil {
		return
	}

	log := q.log.With().
		Str("job_id", job.JobID).
		Str("upload_id", job.UploadID).
		Int("attempt", job.Attempt).
		Logger()

	if !q.policy.ShouldRetry(job, err) {
		log.Error().Err(err).Bool("permanent", jobs.IsPermanent(err)).Msg("Job dropped")
		return
	}

	job.Attempt++
	job.LastError = err.Error()
	backoff := q.policy.Delay(job.Attempt)
	log.Warn().Err(err).Dur("backoff", backoff).Msg("Job failed, scheduling retry")

	time.AfterFunc(backoff, func() {
		if err := q.publish(ctx, job); err != nil && !errors.Is(err, jobs.ErrQueueClosed) && ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to re-enqueue job")
		}
	})
}

// Stop stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.closeChan)
	}
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Queue.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements the jobs.Queue interface.
var _ jobs.Queue = (*Queue)(nil)

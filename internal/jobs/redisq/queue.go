// Package redisq is a jobs.Queue backed by a Redis list, so producers and
// workers can run in separate processes.
//
// Ready jobs live in a list (LPUSH / BRPOP). Retries wait in a sorted set
// scored by their due time and are moved back to the list by a promoter loop.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/jobs"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultKey is the list holding ready jobs.
	DefaultKey = "txanalysis:jobs"

	defaultPollTimeout = time.Second
)

// NewClient connects to addr and verifies the connection with PING.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisq: ping %s: %w", addr, err)
	}
	return client, nil
}

// Queue implements jobs.Queue on top of a Redis client.
type Queue struct {
	client      *redis.Client
	key         string
	delayedKey  string
	workers     int
	pollTimeout time.Duration
	policy      jobs.RetryPolicy
	log         zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithKey sets the list key; the retry set uses key + ":delayed".
func WithKey(key string) Option {
	return func(q *Queue) {
		if key != "" {
			q.key = key
			q.delayedKey = key + ":delayed"
		}
	}
}

// WithWorkers sets how many BRPOP loops Consume runs.
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

// WithPollTimeout bounds each BRPOP call, and so how quickly Consume notices cancellation.
func WithPollTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollTimeout = d
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// New creates a queue. The caller owns client and closes it after Close.
func New(client *redis.Client, opts ...Option) *Queue {
	q := &Queue{
		client:      client,
		key:         DefaultKey,
		delayedKey:  DefaultKey + ":delayed",
		workers:     5,
		pollTimeout: defaultPollTimeout,
		policy:      jobs.DefaultRetryPolicy,
		log:         zerolog.Nop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Enqueue implements jobs.Publisher.
func (q *Queue) Enqueue(ctx context.Context, uploadID string) error {
	if q.isClosed() {
		return jobs.ErrQueueClosed
	}
	return q.push(ctx, jobs.NewAnalysisJob(uploadID))
}

func (q *Queue) push(ctx context.Context, job *jobs.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisq: encoding job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redisq: pushing job: %w", err)
	}
	return nil
}

// Consume implements jobs.Consumer. It blocks until ctx is cancelled or Close
// is called, then waits for in-flight jobs.
func (q *Queue) Consume(ctx context.Context, handler jobs.Handler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return jobs.ErrQueueClosed
	}
	q.wg.Add(q.workers + 1)
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-q.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	go q.promoteLoop(ctx)
	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, handler)
	}

	<-ctx.Done()
	q.wg.Wait()
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error().Err(err).Msg("BRPOP failed")
			sleep(ctx, q.pollTimeout)
			continue
		}

		// res is [key, payload]
		var job jobs.AnalysisJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.log.Error().Err(err).Str("payload", res[1]).Msg("Dropping undecodable job")
			continue
		}
		q.processJob(ctx, &job, handler)
	}
}

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
	due := time.Now().Add(q.policy.Delay(job.Attempt))

	payload, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode retry")
		return
	}
	// Use a fresh context so a shutdown does not lose the scheduled retry.
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.ZAdd(writeCtx, q.delayedKey, redis.Z{Score: float64(due.UnixMilli()), Member: payload}).Err(); err != nil {
		log.Error().Err(err).Msg("Failed to schedule retry")
		return
	}
	log.Warn().Time("due", due).Msg("Job failed, retry scheduled")
}

// promoteLoop moves due retries from the delayed set back onto the list.
func (q *Queue) promoteLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pollTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.promoteDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
				q.log.Error().Err(err).Msg("Failed to promote delayed jobs")
			}
		}
	}
}

func (q *Queue) promoteDue(ctx context.Context, now time.Time) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}

	for _, payload := range due {
		// Only the consumer that wins the ZREM re-pushes the job.
		removed, err := q.client.ZRem(ctx, q.delayedKey, payload).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops Consume loops. It does not close the Redis client.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ jobs.Queue = (*Queue)(nil)

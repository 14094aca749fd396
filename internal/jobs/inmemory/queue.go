// Package inmemory provides channel-backed implementations of the jobs
// contracts for single-instance deployments and tests.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/txn-quality/internal/jobs"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/google/uuid"
)

// DefaultRetryBackoff is the delay unit between attempts; attempt n waits n units.
const DefaultRetryBackoff = time.Second

// Queue is an in-memory job publisher and consumer, safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.IngestJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool

	// RetryBackoff must be set before Start.
	RetryBackoff time.Duration
}

// NewQueue creates a queue holding up to bufferSize pending jobs and
// processing them with workers goroutines (at least one).
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:      make(chan *jobs.IngestJob, bufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workers:      workers,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// PublishIngest records job as pending and enqueues it. A zero MaxRetries
// means DefaultMaxRetries; a negative one disables retries. It blocks while
// the buffer is full.
func (q *Queue) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	if q.isClosed() {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	switch {
	case job.MaxRetries == 0:
		job.MaxRetries = jobs.DefaultMaxRetries
	case job.MaxRetries < 0:
		job.MaxRetries = 0
	}

	if err := q.save(ctx, job); err != nil {
		return fmt.Errorf("PublishIngest: save job: %w", err)
	}
	return q.enqueue(ctx, job)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.IngestJob) error {
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start launches the workers. Jobs run until ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isClosed() {
		return jobs.ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
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

// processJob runs one attempt of job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source", job.Source).
		Int("attempt", job.RetryCount+1).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := runHandler(ctx, job, handler)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Msg("Job completed")
		return
	}

	job.Error = err.Error()
	if errors.Is(err, jobs.ErrPermanent) || job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Bool("permanent", errors.Is(err, jobs.ErrPermanent)).Msg("Job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	backoff := time.Duration(job.RetryCount) * q.RetryBackoff
	log.Warn().Err(err).Dur("backoff", backoff).Msg("Job attempt failed, retrying")

	time.AfterFunc(backoff, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		q.save(ctx, job)

		if err := q.enqueue(context.Background(), job); err != nil {
			job.Status = jobs.JobStatusFailed
			job.Error = fmt.Sprintf("requeue: %v", err)
			q.save(ctx, job)
		}
	})
}

func runHandler(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.IngestJob) error {
	if q.store == nil {
		return nil
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
		return err
	}
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Stop closes the queue and waits for in-flight jobs to finish or ctx to end.
// Jobs still buffered are left pending.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

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

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

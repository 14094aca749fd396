// Package jobs defines asynchronous ingest jobs and the queue and store
// contracts that run them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/txn-quality/internal/repository"
)

var (
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrPermanent matches handler errors that retrying cannot fix.
	ErrPermanent = errors.New("permanent job failure")
)

// Permanent marks err so the queue fails the job without retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string        { return e.err.Error() }
func (e *permanentError) Unwrap() error        { return e.err }
func (e *permanentError) Is(target error) bool { return target == ErrPermanent }

// DefaultMaxRetries applies when a published job leaves MaxRetries unset.
const DefaultMaxRetries = 3

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngest loads a batch file into the store.
	JobTypeIngest JobType = "ingest"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying marks a failed attempt waiting for its backoff.
	JobStatusRetrying JobStatus = "retrying"
)

// IngestJob asks for the batch file at Source to be ingested.
type IngestJob struct {
	JobID  string    `json:"job_id"`
	Source string    `json:"source"`
	Status JobStatus `json:"status"`

	// RunID and Stats are filled in by a successful attempt.
	RunID string               `json:"run_id,omitempty"`
	Stats *repository.RunStats `json:"stats,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is implemented by every job type.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IngestJob) GetID() string        { return j.JobID }
func (j *IngestJob) GetType() JobType     { return JobTypeIngest }
func (j *IngestJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishIngest(ctx context.Context, job *IngestJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start launches the workers. It does not block.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one attempt of a job. A returned error makes the job
// eligible for a retry. The handler may record results on job.
type JobHandler func(ctx context.Context, job *IngestJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestJob) error
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields do not filter.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}

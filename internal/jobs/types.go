package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// SourceKind says what an indexing job points at.
type SourceKind string

const (
	SourceKindTransaction SourceKind = "transaction"
	SourceKindDocument    SourceKind = "document"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IndexSourceJob asks the worker pool to (re)index one source for one user.
// Document jobs carry the GCS location to fetch; transaction jobs are looked
// up in the ledger by source id.
type IndexSourceJob struct {
	JobID string `json:"job_id"`

	UserID   string     `json:"user_id"`
	SourceID string     `json:"source_id"`
	Kind     SourceKind `json:"kind"`

	// Document-only fields.
	GCSURI   string `json:"gcs_uri,omitempty"`
	MimeType string `json:"mime_type,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Retryable reports whether the job's last failure is worth another attempt.
func (j *IndexSourceJob) Retryable(err error) bool {
	return domain.IsRetryable(err) && j.RetryCount < j.MaxRetries
}

// Publisher enqueues indexing jobs. The in-memory queue implements it for
// single-instance deployments; a Pub/Sub implementation would slot in here.
type Publisher interface {
	PublishIndexSource(ctx context.Context, job *IndexSourceJob) error
	Close() error
}

// Consumer runs jobs from the queue through a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}

// Handler processes one job; a returned error marks the job failed and, when
// retryable, re-enqueues it.
type Handler func(ctx context.Context, job *IndexSourceJob) error

// Store tracks job state so the API can report indexing progress.
type Store interface {
	SaveJob(ctx context.Context, job *IndexSourceJob) error
	GetJob(ctx context.Context, jobID string) (*IndexSourceJob, error)
}

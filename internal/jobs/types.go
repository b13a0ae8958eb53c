package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by JobStore lookups of an unknown job.
var ErrJobNotFound = errors.New("job not found")

// Direction is the transfer direction of a sync job.
type Direction string

const (
	// DirectionUpload copies the local document to Google Drive.
	DirectionUpload Direction = "upload"
	// DirectionDownload replaces the local document with the Drive backup.
	DirectionDownload Direction = "download"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionUpload || d == DirectionDownload
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed jobs are not retried.
	JobStatusFailed JobStatus = "failed"
)

// SyncJob is one transfer of the document between the local store and Google Drive.
type SyncJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Direction is upload or download.
	Direction Direction `json:"direction"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RemoteFileID is the Drive file written or read by the job.
	RemoteFileID string `json:"remote_file_id,omitempty"`
}

// Publisher enqueues sync jobs.
type Publisher interface {
	// Publish enqueues job, assigning its id, status and creation time when unset.
	Publish(ctx context.Context, job *SyncJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
// The handler may set job.RemoteFileID.
type JobHandler func(ctx context.Context, job *SyncJob) error

// JobStore stores job state for the status endpoints.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncJob) error

	// GetJob retrieves a job by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*SyncJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Direction filters jobs by direction.
	Direction Direction

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

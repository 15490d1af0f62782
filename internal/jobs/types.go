package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Outcome is what a completed download job found.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeNotFound   Outcome = "not_found"
)

// DownloadJob fetches one extraction document into a vendor folder.
type DownloadJob struct {
	JobID string `json:"job_id"`

	Vendor string `json:"vendor"`
	MD5    string `json:"md5"`

	// Object is the bucket object that was found, Path where it was written.
	Object string `json:"object,omitempty"`
	Path   string `json:"path,omitempty"`

	Status  JobStatus `json:"status"`
	Outcome Outcome   `json:"outcome,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// JobHandler processes a job. A returned error fails the attempt and may be retried.
type JobHandler func(ctx context.Context, job *DownloadJob) error

// JobStore records job state as the queue works through a batch.
type JobStore interface {
	SaveJob(ctx context.Context, job *DownloadJob) error
	ListJobs(ctx context.Context) ([]*DownloadJob, error)
}

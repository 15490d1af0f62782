package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/charge-mapping/internal/jobs"
)

// ErrQueueClosed is returned when publishing to a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue runs download jobs on a fixed pool of workers. Publish feeds jobs in, Close signals
// that the batch is complete, and Wait blocks until every published job reached a final status.
// A failing job is retried on the same worker after a linear backoff.
type Queue struct {
	jobChan chan *jobs.DownloadJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.JobStore
	closed  bool
	started bool

	workers int
	// Backoff is multiplied by the retry number before each retry.
	Backoff time.Duration
}

// NewQueue creates a queue with workerCount workers. bufferSize determines how many jobs
// can be queued before Publish blocks.
func NewQueue(workerCount, bufferSize int, store jobs.JobStore) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Queue{
		jobChan: make(chan *jobs.DownloadJob, bufferSize),
		store:   store,
		workers: workerCount,
		Backoff: time.Second,
	}
}

// Publish enqueues a job, assigning an ID and creation time when missing.
func (q *Queue) Publish(ctx context.Context, job *jobs.DownloadJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. It may be called once.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// Close stops accepting jobs. Workers finish what is already queued.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.jobChan)
	return nil
}

// Wait blocks until the workers have drained the closed queue.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for job := range q.jobChan {
		q.processJob(ctx, job, handler)
	}
}

// processJob executes a job, retrying failures until MaxRetries is used up or ctx ends.
// Jobs still queued after cancellation are marked failed without running.
func (q *Queue) processJob(ctx context.Context, job *jobs.DownloadJob, handler jobs.JobHandler) {
	for {
		if err := ctx.Err(); err != nil {
			q.finish(ctx, job, err)
			return
		}

		job.Status = jobs.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
		q.save(ctx, job)

		err := handler(ctx, job)
		if err == nil {
			q.finish(ctx, job, nil)
			return
		}

		if job.RetryCount >= job.MaxRetries || ctx.Err() != nil {
			q.finish(ctx, job, err)
			return
		}

		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		q.save(ctx, job)

		backoff := time.Duration(job.RetryCount) * q.Backoff
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}
}

func (q *Queue) finish(ctx context.Context, job *jobs.DownloadJob, err error) {
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.save(context.WithoutCancel(ctx), job)
}

func (q *Queue) save(ctx context.Context, job *jobs.DownloadJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

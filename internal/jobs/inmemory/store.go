package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/charge-mapping/internal/jobs"
)

// Store is an in-memory JobStore, safe for concurrent use. ListJobs returns jobs in the
// order they were first saved.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobs.DownloadJob
	order []string
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.DownloadJob),
	}
}

// SaveJob stores a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.DownloadJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.JobID]; !ok {
		s.order = append(s.order, job.JobID)
	}
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// ListJobs returns copies of every saved job.
func (s *Store) ListJobs(ctx context.Context) ([]*jobs.DownloadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*jobs.DownloadJob, 0, len(s.order))
	for _, id := range s.order {
		jobCopy := *s.jobs[id]
		result = append(result, &jobCopy)
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)

package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
)

// Store keeps job records in memory. Data is lost on restart; the job store
// exists so API clients can poll indexing progress, not as durable history.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.IndexSourceJob
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.IndexSourceJob),
	}
}

// SaveJob inserts or replaces a job record. Copies on the way in so callers
// can keep mutating their job struct.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IndexSourceJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob returns a copy of the job, or domain.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IndexSourceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: job %s: %w", jobID, domain.ErrNotFound)
	}

	jobCopy := *job
	return &jobCopy, nil
}

var _ jobs.Store = (*Store)(nil)

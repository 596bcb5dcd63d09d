package export

import (
	"context"
	"sync"
	"time"

	"dynquery/internal/domain"
)

// MemoryJobStore is a process-local domain.ExportJobRepository.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.ExportJob
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.ExportJob)}
}

// Create implements domain.ExportJobRepository.
func (s *MemoryJobStore) Create(_ context.Context, job *domain.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// Finish implements domain.ExportJobRepository.
func (s *MemoryJobStore) Finish(_ context.Context, id, status, objectKey, link, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound("export job %q not found", id)
	}
	now := time.Now().UTC()
	job.Status, job.ObjectKey, job.Link, job.Error, job.FinishedAt = status, objectKey, link, errMsg, &now
	s.jobs[id] = job
	return nil
}

// Get implements domain.ExportJobRepository.
func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound("export job %q not found", id)
	}
	return &job, nil
}

var _ domain.ExportJobRepository = (*MemoryJobStore)(nil)

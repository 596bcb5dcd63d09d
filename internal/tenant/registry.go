package tenant

import (
	"context"
	"sync"

	"dynquery/internal/domain"
)

// MemoryRegistry is a process-local ConnectionRegistry.
type MemoryRegistry struct {
	records sync.Map // user id → domain.ConnectionRecord
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// Set implements domain.ConnectionRegistry.
func (r *MemoryRegistry) Set(_ context.Context, userID string, rec domain.ConnectionRecord) error {
	r.records.Store(userID, rec)
	return nil
}

// Get implements domain.ConnectionRegistry.
func (r *MemoryRegistry) Get(_ context.Context, userID string) (*domain.ConnectionRecord, error) {
	v, ok := r.records.Load(userID)
	if !ok {
		return nil, domain.ErrNotFound("no active connection for user %q", userID)
	}
	rec := v.(domain.ConnectionRecord)
	return &rec, nil
}

// Clear implements domain.ConnectionRegistry.
func (r *MemoryRegistry) Clear(_ context.Context, userID string) error {
	r.records.Delete(userID)
	return nil
}

var _ domain.ConnectionRegistry = (*MemoryRegistry)(nil)

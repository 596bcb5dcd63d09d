package domain

import (
	"context"
	"time"
)

// Export job states.
const (
	ExportPending   = "pending"
	ExportSucceeded = "succeeded"
	ExportFailed    = "failed"
)

// ExportJob tracks one deferred CSV export.
type ExportJob struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	Model      string     `json:"model"`
	Tenant     string     `json:"tenant"`
	Status     string     `json:"status"`
	ObjectKey  string     `json:"object_key,omitempty"`
	Link       string     `json:"link,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExportJobRepository persists export jobs.
// Implemented by export.MemoryJobStore and repository.ExportJobRepo.
type ExportJobRepository interface {
	Create(ctx context.Context, job *ExportJob) error
	Finish(ctx context.Context, id, status, objectKey, link, errMsg string) error
	Get(ctx context.Context, id string) (*ExportJob, error)
}

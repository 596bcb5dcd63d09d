package domain

import (
	"context"
	"time"
)

// ConnectionRegistry records the in-flight tenant connection id of each user.
// Set replaces any previous record; Clear is a no-op when none exists.
// Implemented by tenant.MemoryRegistry and repository.ConnectionRepo.
type ConnectionRegistry interface {
	Set(ctx context.Context, userID string, rec ConnectionRecord) error
	Get(ctx context.Context, userID string) (*ConnectionRecord, error)
	Clear(ctx context.Context, userID string) error
}

// ConnectionRecord is the registry entry for one user.
type ConnectionRecord struct {
	ConnectionID string    `json:"connection_id"`
	Tenant       string    `json:"tenant"`
	StartedAt    time.Time `json:"started_at"`
}

// BlobStore persists exported files and hands out retrieval links.
// Implemented by the stores in internal/storage.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// Notification is one outbound message.
type Notification struct {
	To      string
	From    string
	Subject string
	Content string
}

// Notifier delivers notifications. Implemented by internal/notify.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

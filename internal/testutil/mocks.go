// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"dynquery/internal/domain"
	"dynquery/internal/tenant"
)

// === Blob Store Mock ===

// MockBlobStore implements domain.BlobStore for testing. Objects are kept in
// memory unless PutFn overrides the write.
type MockBlobStore struct {
	PutFn func(ctx context.Context, key string, body []byte, contentType string) error
	URLFn func(ctx context.Context, key string) (string, error)

	mu      sync.Mutex
	Objects map[string][]byte
}

// Put implements the interface method for testing.
func (m *MockBlobStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.PutFn != nil {
		if err := m.PutFn(ctx, key, body, contentType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[key] = append([]byte(nil), body...)
	return nil
}

// URL implements the interface method for testing.
func (m *MockBlobStore) URL(ctx context.Context, key string) (string, error) {
	if m.URLFn != nil {
		return m.URLFn(ctx, key)
	}
	return "https://blob.test/" + key, nil
}

// Object returns a stored object.
func (m *MockBlobStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Objects[key]
	return b, ok
}

// === Notifier Mock ===

// MockNotifier implements domain.Notifier and collects every message.
type MockNotifier struct {
	NotifyFn func(ctx context.Context, n domain.Notification) error

	mu   sync.Mutex
	Sent []domain.Notification
}

// Notify implements the interface method for testing.
func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, n)
	m.mu.Unlock()
	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, n)
	}
	return nil
}

// Messages returns a copy of the collected notifications.
func (m *MockNotifier) Messages() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.Sent...)
}

// === Connection Registry Mock ===

// MockConnectionRegistry implements domain.ConnectionRegistry for testing.
type MockConnectionRegistry struct {
	SetFn   func(ctx context.Context, userID string, rec domain.ConnectionRecord) error
	GetFn   func(ctx context.Context, userID string) (*domain.ConnectionRecord, error)
	ClearFn func(ctx context.Context, userID string) error

	mu      sync.Mutex
	Cleared []string
}

// Set implements the interface method for testing.
func (m *MockConnectionRegistry) Set(ctx context.Context, userID string, rec domain.ConnectionRecord) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, userID, rec)
	}
	panic("unexpected call to MockConnectionRegistry.Set")
}

// Get implements the interface method for testing.
func (m *MockConnectionRegistry) Get(ctx context.Context, userID string) (*domain.ConnectionRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, userID)
	}
	panic("unexpected call to MockConnectionRegistry.Get")
}

// Clear implements the interface method for testing. Every call is
// recorded, including failed ones.
func (m *MockConnectionRegistry) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	m.Cleared = append(m.Cleared, userID)
	m.mu.Unlock()
	if m.ClearFn != nil {
		return m.ClearFn(ctx, userID)
	}
	return nil
}

// === Tenant Executor Mock ===

// MockTenantExecutor stands in for tenant.Router.
type MockTenantExecutor struct {
	ExecuteFn func(ctx context.Context, req tenant.Request) (*domain.ResultSet, error)
	KillFn    func(ctx context.Context, tenantName string, connID uint64) error
	Reg       domain.ConnectionRegistry

	mu       sync.Mutex
	Requests []tenant.Request
}

// Execute implements the interface method for testing.
func (m *MockTenantExecutor) Execute(ctx context.Context, req tenant.Request) (*domain.ResultSet, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req)
	}
	panic("unexpected call to MockTenantExecutor.Execute")
}

// Kill implements the interface method for testing.
func (m *MockTenantExecutor) Kill(ctx context.Context, tenantName string, connID uint64) error {
	if m.KillFn != nil {
		return m.KillFn(ctx, tenantName, connID)
	}
	panic("unexpected call to MockTenantExecutor.Kill")
}

// Registry implements the interface method for testing.
func (m *MockTenantExecutor) Registry() domain.ConnectionRegistry {
	return m.Reg
}

// Calls returns the number of Execute calls.
func (m *MockTenantExecutor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

package repository

import (
	"context"
	"database/sql"

	"dynquery/internal/domain"
)

// ConnectionRepo implements domain.ConnectionRegistry on the
// user_connections table, so that any replica can kill a query.
type ConnectionRepo struct {
	db *sql.DB
}

// NewConnectionRepo creates a new ConnectionRepo.
func NewConnectionRepo(db *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

// Set records the in-flight connection of a user, replacing any previous one.
func (r *ConnectionRepo) Set(ctx context.Context, userID string, rec domain.ConnectionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_connections (user_id, connection_id, tenant, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			connection_id = excluded.connection_id,
			tenant = excluded.tenant,
			started_at = excluded.started_at`,
		userID, rec.ConnectionID, rec.Tenant, formatTime(rec.StartedAt))
	return mapDBError(err)
}

// Get returns the connection record of a user.
func (r *ConnectionRepo) Get(ctx context.Context, userID string) (*domain.ConnectionRecord, error) {
	var rec domain.ConnectionRecord
	var startedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT connection_id, tenant, started_at FROM user_connections WHERE user_id = ?`, userID).
		Scan(&rec.ConnectionID, &rec.Tenant, &startedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("no active connection for user %q", userID)
		}
		return nil, mapDBError(err)
	}
	rec.StartedAt = parseTime(startedAt)
	return &rec, nil
}

// Clear removes the record of a user. Clearing a missing record is not an error.
func (r *ConnectionRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_connections WHERE user_id = ?`, userID)
	return mapDBError(err)
}

var _ domain.ConnectionRegistry = (*ConnectionRepo)(nil)

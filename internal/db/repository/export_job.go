package repository

import (
	"context"
	"database/sql"
	"time"

	"dynquery/internal/domain"
)

// ExportJobRepo implements domain.ExportJobRepository on the export_jobs table.
type ExportJobRepo struct {
	db *sql.DB
}

// NewExportJobRepo creates a new ExportJobRepo.
func NewExportJobRepo(db *sql.DB) *ExportJobRepo {
	return &ExportJobRepo{db: db}
}

// Create inserts a new job.
func (r *ExportJobRepo) Create(ctx context.Context, job *domain.ExportJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (id, user_id, email, model, tenant, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.Email, job.Model, job.Tenant, job.Status, formatTime(job.CreatedAt))
	return mapDBError(err)
}

// Finish records the outcome of a job.
func (r *ExportJobRepo) Finish(ctx context.Context, id, status, objectKey, link, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs
		SET status = ?, object_key = ?, link = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, nullString(objectKey), nullString(link), nullString(errMsg), formatTime(time.Now()), id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("export job %q not found", id)
	}
	return nil
}

// Get returns a job by id.
func (r *ExportJobRepo) Get(ctx context.Context, id string) (*domain.ExportJob, error) {
	var (
		job                     domain.ExportJob
		objectKey, link, errMsg sql.NullString
		createdAt               string
		finishedAt              sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, model, tenant, status, object_key, link, error, created_at, finished_at
		FROM export_jobs WHERE id = ?`, id).
		Scan(&job.ID, &job.UserID, &job.Email, &job.Model, &job.Tenant, &job.Status,
			&objectKey, &link, &errMsg, &createdAt, &finishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("export job %q not found", id)
		}
		return nil, mapDBError(err)
	}
	job.ObjectKey = objectKey.String
	job.Link = link.String
	job.Error = errMsg.String
	job.CreatedAt = parseTime(createdAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	return &job, nil
}

var _ domain.ExportJobRepository = (*ExportJobRepo)(nil)

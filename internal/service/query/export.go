package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dynquery/internal/domain"
	"dynquery/internal/tenant"
)

// startExport records a pending job and runs the query on a background
// goroutine. The owner is told the outcome by notification.
func (s *Service) startExport(ctx context.Context, req ObjectRequest, execReq tenant.Request) (*ExportTicket, error) {
	job := &domain.ExportJob{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Email:  req.Email,
		Model:  req.Model,
		Tenant: req.Tenant,
	}
	if err := s.exporter.Begin(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	s.exports.Add(1)
	go func() {
		defer s.exports.Done()
		s.runExport(bg, job, execReq)
	}()
	return &ExportTicket{JobID: job.ID, Status: job.Status}, nil
}

func (s *Service) runExport(ctx context.Context, job *domain.ExportJob, execReq tenant.Request) {
	logger := s.logger.With("job_id", job.ID, "model", job.Model, "tenant", job.Tenant)

	rs, err := s.exec.Execute(ctx, execReq)
	if err != nil {
		logger.Error("export query failed", "error", err)
		s.exporter.Fail(ctx, job, err)
		return
	}
	if err := s.exporter.Deliver(ctx, job, rs); err != nil {
		logger.Error("export delivery failed", "error", err)
		return
	}
	logger.Info("export delivered", "rows", len(rs.Rows), "link", job.Link)
}

// GetExportJob returns an export job owned by userID.
func (s *Service) GetExportJob(ctx context.Context, userID, id string) (*domain.ExportJob, error) {
	if s.exporter == nil || s.exporter.Jobs() == nil {
		return nil, domain.ErrNotFound("export job %q not found", id)
	}
	job, err := s.exporter.Jobs().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound("export job %q not found", id)
	}
	return job, nil
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dynquery/internal/domain"
)

// Notification texts.
const (
	SubjectReady   = "Query table CSV is ready"
	SubjectFailed  = "CSV export failed"
	contentReady   = "Click the link to open your csv: \n\r %s"
	contentFailed  = "CSV export failed"
	csvContentType = "text/csv"
)

// ObjectKey returns the storage key of a user's export of model.
func ObjectKey(email, model string) string {
	return "media/" + RelativePath(email, model)
}

// RelativePath returns the export path below the media root.
func RelativePath(email, model string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(email)
	return fmt.Sprintf("temp/%s_%s.csv", safe, model)
}

// Exporter stores CSV exports and notifies their owners.
type Exporter struct {
	store    domain.BlobStore
	notifier domain.Notifier
	jobs     domain.ExportJobRepository
	from     string
	linkBase string
	logger   *slog.Logger
}

// Options configures an Exporter.
type Options struct {
	// From is the sender address of notifications.
	From string
	// LinkBase, when set, makes links `<LinkBase>/document/<path>` instead
	// of asking the store for a presigned link.
	LinkBase string
}

// NewExporter creates an Exporter. jobs may be nil.
func NewExporter(store domain.BlobStore, notifier domain.Notifier, jobs domain.ExportJobRepository, opts Options, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:    store,
		notifier: notifier,
		jobs:     jobs,
		from:     opts.From,
		linkBase: strings.TrimRight(opts.LinkBase, "/"),
		logger:   logger,
	}
}

// Jobs returns the job repository, or nil when jobs are not tracked.
func (e *Exporter) Jobs() domain.ExportJobRepository { return e.jobs }

// Begin records a pending job.
func (e *Exporter) Begin(ctx context.Context, job *domain.ExportJob) error {
	job.Status = domain.ExportPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if e.jobs == nil {
		return nil
	}
	return e.jobs.Create(ctx, job)
}

// Deliver stores rs as CSV and sends the success notification. When
// storing fails the owner gets the failure notification instead and the
// returned error is an ExportError.
func (e *Exporter) Deliver(ctx context.Context, job *domain.ExportJob, rs *domain.ResultSet) error {
	key := ObjectKey(job.Email, job.Model)
	link, err := e.save(ctx, key, rs)
	if err != nil {
		e.finish(ctx, job, domain.ExportFailed, key, "", err.Error())
		e.notify(ctx, job.Email, SubjectFailed, contentFailed)
		return domain.ErrExport(err, "export %s for %s", job.Model, job.Email)
	}
	e.finish(ctx, job, domain.ExportSucceeded, key, link, "")
	e.notify(ctx, job.Email, SubjectReady, fmt.Sprintf(contentReady, link))
	return nil
}

// Fail records a job that never produced a result and tells the owner.
func (e *Exporter) Fail(ctx context.Context, job *domain.ExportJob, cause error) {
	e.finish(ctx, job, domain.ExportFailed, "", "", cause.Error())
	e.notify(ctx, job.Email, SubjectFailed, contentFailed)
}

func (e *Exporter) save(ctx context.Context, key string, rs *domain.ResultSet) (string, error) {
	if err := e.store.Put(ctx, key, EncodeCSV(rs.Headers, rs.Rows), csvContentType); err != nil {
		return "", err
	}
	if e.linkBase != "" {
		return e.linkBase + "/document/" + strings.TrimPrefix(key, "media/"), nil
	}
	return e.store.URL(ctx, key)
}

func (e *Exporter) finish(ctx context.Context, job *domain.ExportJob, status, key, link, errMsg string) {
	now := time.Now().UTC()
	job.Status, job.ObjectKey, job.Link, job.Error, job.FinishedAt = status, key, link, errMsg, &now
	if e.jobs == nil {
		return
	}
	if err := e.jobs.Finish(ctx, job.ID, status, key, link, errMsg); err != nil {
		e.logger.Warn("record export job failed", "job_id", job.ID, "error", err)
	}
}

func (e *Exporter) notify(ctx context.Context, to, subject, content string) {
	err := e.notifier.Notify(ctx, domain.Notification{To: to, From: e.from, Subject: subject, Content: content})
	if err != nil {
		e.logger.Error("export notification failed", "to", to, "subject", subject, "error", err)
	}
}

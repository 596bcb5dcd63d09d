// Package api exposes the query service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dynquery/internal/domain"
	"dynquery/internal/middleware"
	"dynquery/internal/service/query"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// tenantHeader names the tenant when the body does not.
const tenantHeader = "X-Tenant"

// Handler implements the HTTP endpoints.
type Handler struct {
	svc    *query.Service
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *query.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("component", "api")}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidation("request body is required")
		}
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func tenantFrom(r *http.Request, fromBody string) string {
	if t := strings.TrimSpace(fromBody); t != "" {
		return t
	}
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	return r.Header.Get(tenantHeader)
}

func userFrom(r *http.Request) domain.ContextUser {
	u, _ := domain.UserFromContext(r.Context())
	return u
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetObject handles POST /v1/objects.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	var req query.ObjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user := userFrom(r)
	req.UserID = user.ID
	req.Tenant = tenantFrom(r, req.Tenant)
	if req.Email == "" {
		req.Email = user.Email
	}

	resp, err := h.svc.GetObject(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Kind == query.ResponseDeferred {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

type countRequest struct {
	Model     string                   `json:"model"`
	Filters   []domain.FilterCriterion `json:"filters"`
	Selection *domain.SelectionNode    `json:"selection"`
	Tenant    string                   `json:"tenant"`
}

// CountObjects handles POST /v1/objects/count. Failures are reported as
// `{"failed": reason}`.
func (h *Handler) CountObjects(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"failed": err.Error()})
		return
	}
	n, err := h.svc.GetObjectsCount(r.Context(), req.Model, req.Filters, req.Selection, tenantFrom(r, req.Tenant))
	if err != nil {
		writeJSON(w, httpStatusFromDomainError(err), map[string]string{"failed": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"success": n})
}

type rawSQLRequest struct {
	SQL    string `json:"sql"`
	Tenant string `json:"tenant"`
}

// RawSQL handles POST /v1/sql.
func (h *Handler) RawSQL(w http.ResponseWriter, r *http.Request) {
	var req rawSQLRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rs, err := h.svc.GetRawSQL(r.Context(), req.SQL, tenantFrom(r, req.Tenant), userFrom(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// KillQuery handles POST /v1/queries/{id}/kill.
func (h *Handler) KillQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.KillQuery(r.Context(), id, tenantFrom(r, ""), userFrom(r).ID); err != nil {
		writeJSON(w, httpStatusFromDomainError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"done": fmt.Sprintf("Query %s killed", id)})
}

// ActiveQuery handles GET /v1/queries/active.
func (h *Handler) ActiveQuery(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ActiveConnection(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListFields handles GET /v1/models/{model}/fields.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.GetFields(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// ReloadCatalog handles POST /v1/catalog/reload.
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadCatalog(r.Context()); err != nil {
		h.requestLogger(r).Warn("catalog reload failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// GetExport handles GET /v1/exports/{id}.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetExportJob(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// requestLogger tags the handler logger with the request id.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", middleware.RequestIDFromContext(r.Context()))
}

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dynquery/internal/domain"
	"dynquery/internal/tenant"
)

// Delivery selects how an object query result reaches the caller.
type Delivery string

// Delivery modes.
const (
	DeliverInline Delivery = "inline"
	DeliverExport Delivery = "export"
)

// ObjectRequest is the input of GetObject.
type ObjectRequest struct {
	Model        string                   `json:"model"`
	Selection    *domain.SelectionNode    `json:"selection"`
	Filters      []domain.FilterCriterion `json:"filters"`
	OrderBy      string                   `json:"order_by"`
	Limit        int                      `json:"limit"`
	RenameFields bool                     `json:"rename_fields"`
	Summarize    []domain.SummarizeColumn `json:"summarize"`
	Rollup       bool                     `json:"rollup"`
	DryRun       bool                     `json:"dry_run"`
	Delivery     Delivery                 `json:"delivery"`
	Email        string                   `json:"email"`
	Tenant       string                   `json:"tenant"`
	UserID       string                   `json:"-"`
}

func (r *ObjectRequest) query() domain.ObjectQuery {
	return domain.ObjectQuery{
		Model:        r.Model,
		Selection:    r.Selection,
		Filters:      r.Filters,
		OrderBy:      r.OrderBy,
		Limit:        r.Limit,
		RenameFields: r.RenameFields,
		Summarize:    r.Summarize,
		Rollup:       r.Rollup,
		DryRun:       r.DryRun,
	}
}

// ResponseKind tags the variant held by an ObjectResponse.
type ResponseKind string

// Response variants.
const (
	ResponseInline   ResponseKind = "inline"
	ResponseDryRun   ResponseKind = "dry_run"
	ResponseDeferred ResponseKind = "deferred"
)

// ExportTicket identifies a background export.
type ExportTicket struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ObjectResponse is exactly one of an inline result, the SQL text of a dry
// run, or a ticket for a deferred export.
type ObjectResponse struct {
	Kind   ResponseKind
	Result *domain.ResultSet
	SQL    string
	Ticket *ExportTicket
}

// MarshalJSON renders only the active variant.
func (r *ObjectResponse) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResponseDryRun:
		return json.Marshal(map[string]string{"sql": r.SQL})
	case ResponseDeferred:
		return json.Marshal(r.Ticket)
	default:
		return json.Marshal(r.Result)
	}
}

// GetObject compiles req and, unless it is a dry run, executes it. Compile
// errors are returned before any tenant connection is opened.
func (s *Service) GetObject(ctx context.Context, req ObjectRequest) (*ObjectResponse, error) {
	switch req.Delivery {
	case "", DeliverInline, DeliverExport:
	default:
		return nil, domain.ErrValidation("unknown delivery %q", req.Delivery)
	}
	if req.Delivery == DeliverExport && !req.DryRun {
		if strings.TrimSpace(req.Email) == "" {
			return nil, domain.ErrValidation("email is required for export delivery")
		}
		if s.exporter == nil {
			return nil, domain.ErrValidation("export delivery is not configured")
		}
	}

	compiled, err := s.assembler().Assemble(req.query())
	if err != nil {
		return nil, err
	}
	if req.DryRun {
		return &ObjectResponse{Kind: ResponseDryRun, SQL: compiled.Render()}, nil
	}

	execReq := tenant.Request{Tenant: req.Tenant, UserID: req.UserID, SQL: compiled.SQL, Args: compiled.Args}
	if req.Delivery == DeliverExport {
		ticket, err := s.startExport(ctx, req, execReq)
		if err != nil {
			return nil, err
		}
		return &ObjectResponse{Kind: ResponseDeferred, Ticket: ticket}, nil
	}

	rs, err := s.exec.Execute(ctx, execReq)
	if err != nil {
		s.logger.Error("object query failed", "model", req.Model, "tenant", req.Tenant, "user_id", req.UserID, "error", err)
		return nil, err
	}
	rs.Headers = compiled.Headers
	return &ObjectResponse{Kind: ResponseInline, Result: rs}, nil
}

// GetObjectsCount counts the rows a selection with filters would return.
func (s *Service) GetObjectsCount(ctx context.Context, model string, filters []domain.FilterCriterion, selection *domain.SelectionNode, tenantName string) (int64, error) {
	compiled, err := s.assembler().AssembleCount(model, selection, filters)
	if err != nil {
		return 0, err
	}
	rs, err := s.exec.Execute(ctx, tenant.Request{Tenant: tenantName, SQL: compiled.SQL, Args: compiled.Args})
	if err != nil {
		return 0, err
	}
	if len(rs.Rows) == 0 {
		return 0, nil
	}
	v, _ := rs.Rows[0].Get("id")
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count value %T", v)
	}
}

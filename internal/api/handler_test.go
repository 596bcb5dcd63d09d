package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynquery/internal/catalog"
	"dynquery/internal/compiler"
	"dynquery/internal/domain"
	"dynquery/internal/export"
	"dynquery/internal/middleware"
	"dynquery/internal/service/query"
	"dynquery/internal/tenant"
	"dynquery/internal/testutil"
)

const testSecret = "test-secret"

const testCatalog = `
models:
  loan:
    id: number
    amount: number
    client_id: number
    status: string
  client:
    id: number
    name: string
`

type testServer struct {
	srv  *httptest.Server
	exec *testutil.MockTenantExecutor
	reg  *tenant.MemoryRegistry
	docs string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	reg := tenant.NewMemoryRegistry()
	exec := &testutil.MockTenantExecutor{Reg: reg}
	exp := export.NewExporter(&testutil.MockBlobStore{}, &testutil.MockNotifier{}, export.NewMemoryJobStore(), export.Options{}, logger)
	svc := query.NewService(catalog.NewStaticHolder(c), exec, exp, compiler.DefaultSourceOffset, logger)
	t.Cleanup(svc.Wait)

	validator, err := middleware.NewHS256Validator(testSecret)
	require.NoError(t, err)

	docs := t.TempDir()
	router := NewRouter(NewHandler(svc, logger), RouterOptions{
		Validator:    validator,
		DocumentsDir: docs,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, exec: exec, reg: reg, docs: docs}
}

func token(t *testing.T, sub, email string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if email != "" {
		claims["email"] = email
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "42", "ann@example.com"))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func rows(cols []string, vals ...[]any) *domain.ResultSet {
	rs := &domain.ResultSet{Headers: cols}
	for _, v := range vals {
		rs.Rows = append(rs.Rows, domain.Row{Columns: cols, Values: v})
	}
	return rs
}

func TestHealthIsPublic(t *testing.T) {
	s := setupTestServer(t)
	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestV1RequiresToken(t *testing.T) {
	s := setupTestServer(t)
	resp, err := http.Post(s.srv.URL+"/v1/objects", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetObjectDryRun(t *testing.T) {
	s := setupTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/v1/objects",
		`{"model":"loan","selection":{"model":"loan","fields":["id","amount"]},"limit":5,"dry_run":true}`, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SELECT id, amount FROM loan LIMIT 5", body["sql"])
	assert.Equal(t, 0, s.exec.Calls())
}

func TestGetObjectInlineUsesHeaderTenantAndTokenSubject(t *testing.T) {
	s := setupTestServer(t)
	s.exec.ExecuteFn = func(_ context.Context, req tenant.Request) (*domain.ResultSet, error) {
		return rows([]string{"id", "amount"}, []any{int64(1), 10.5}), nil
	}

	resp, body := s.do(t, http.MethodPost, "/v1/objects",
		`{"model":"loan","selection":{"model":"loan","fields":["id","amount"]}}`,
		map[string]string{"X-Tenant": "acme"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"id", "amount"}, body["headers"])
	require.Len(t, body["rows"], 1)

	require.Len(t, s.exec.Requests, 1)
	assert.Equal(t, "acme", s.exec.Requests[0].Tenant)
	assert.Equal(t, "42", s.exec.Requests[0].UserID)
}

func TestGetObjectErrors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name     string
		body     string
		execErr  error
		wantCode int
	}{
		{name: "unknown model", body: `{"model":"ghost","selection":{"model":"ghost","fields":["id"]}}`, wantCode: http.StatusBadRequest},
		{name: "bad json", body: `{"model":`, wantCode: http.StatusBadRequest},
		{name: "empty body", body: "", wantCode: http.StatusBadRequest},
		{
			name:     "tenant unreachable",
			body:     `{"model":"loan","selection":{"model":"loan","fields":["id"]}}`,
			execErr:  domain.ErrConnection(errors.New("dial"), "connect to tenant %q", "acme"),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "sql rejected",
			body:     `{"model":"loan","selection":{"model":"loan","fields":["id"]}}`,
			execErr:  domain.ErrExecution(errors.New("syntax"), "execute query"),
			wantCode: http.StatusUnprocessableEntity,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s.exec.ExecuteFn = func(context.Context, tenant.Request) (*domain.ResultSet, error) {
				return nil, tc.execErr
			}
			resp, body := s.do(t, http.MethodPost, "/v1/objects", tc.body, nil)
			assert.Equal(t, tc.wantCode, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetObjectExportIsAccepted(t *testing.T) {
	s := setupTestServer(t)
	s.exec.ExecuteFn = func(context.Context, tenant.Request) (*domain.ResultSet, error) {
		return rows([]string{"id"}, []any{int64(1)}), nil
	}

	resp, body := s.do(t, http.MethodPost, "/v1/objects",
		`{"model":"loan","selection":{"model":"loan","fields":["id"]},"delivery":"export"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, domain.ExportPending, body["status"])

	resp, _ = s.do(t, http.MethodGet, "/v1/exports/"+jobID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/exports/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCountObjects(t *testing.T) {
	s := setupTestServer(t)
	s.exec.ExecuteFn = func(context.Context, tenant.Request) (*domain.ResultSet, error) {
		return rows([]string{"id"}, []any{int64(7)}), nil
	}

	resp, body := s.do(t, http.MethodPost, "/v1/objects/count",
		`{"model":"loan","selection":{"model":"loan","fields":["id"]},"tenant":"acme"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["success"])

	resp, body = s.do(t, http.MethodPost, "/v1/objects/count",
		`{"model":"ghost","selection":{"model":"ghost","fields":["id"]}}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["failed"])
}

func TestRawSQL(t *testing.T) {
	s := setupTestServer(t)
	s.exec.ExecuteFn = func(_ context.Context, req tenant.Request) (*domain.ResultSet, error) {
		assert.Equal(t, "SELECT 1 AS one", req.SQL)
		assert.True(t, req.ClearOnSuccess)
		return rows([]string{"one"}, []any{int64(1)}), nil
	}

	resp, body := s.do(t, http.MethodPost, "/v1/sql", `{"sql":"SELECT 1 AS one","tenant":"acme"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["rows"], 1)

	resp, _ = s.do(t, http.MethodPost, "/v1/sql", `{"sql":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKillQuery(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.reg.Set(context.Background(), "42", domain.ConnectionRecord{ConnectionID: "99", Tenant: "acme"}))

	var killed uint64
	s.exec.KillFn = func(_ context.Context, tenantName string, id uint64) error {
		assert.Equal(t, "acme", tenantName)
		killed = id
		return nil
	}

	resp, body := s.do(t, http.MethodPost, "/v1/queries/99/kill?tenant=acme", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Query 99 killed", body["done"])
	assert.Equal(t, uint64(99), killed)

	resp, _ = s.do(t, http.MethodGet, "/v1/queries/active", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKillQueryFailureIsReported(t *testing.T) {
	s := setupTestServer(t)
	s.exec.KillFn = func(context.Context, string, uint64) error {
		return domain.ErrExecution(errors.New("Unknown thread id: 5"), "kill connection 5")
	}

	resp, body := s.do(t, http.MethodPost, "/v1/queries/5/kill", "", map[string]string{"X-Tenant": "acme"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "Unknown thread id")

	resp, _ = s.do(t, http.MethodPost, "/v1/queries/abc/kill", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActiveQuery(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.reg.Set(context.Background(), "42", domain.ConnectionRecord{ConnectionID: "12", Tenant: "acme"}))

	resp, body := s.do(t, http.MethodGet, "/v1/queries/active", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "12", body["connection_id"])
}

func TestListFields(t *testing.T) {
	s := setupTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/v1/models/loan/fields", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fields, _ := body["fields"].([]any)
	var names []string
	for _, f := range fields {
		names = append(names, f.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"amount", "status"}, names)

	resp, _ = s.do(t, http.MethodGet, "/v1/models/ghost/fields", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReloadCatalogStatic(t *testing.T) {
	s := setupTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/v1/catalog/reload", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reloaded", body["status"])
}

func TestDocumentServerIsOwnerScoped(t *testing.T) {
	s := setupTestServer(t)
	rel := export.RelativePath("ann@example.com", "loan")
	p := filepath.Join(s.docs, "media", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte("id\n1"), 0o640))

	resp, err := http.DefaultClient.Do(authedGet(t, s.srv.URL+"/document/"+rel, "42", "ann@example.com"))
	require.NoError(t, err)
	got, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "id\n1", string(got))
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	resp, err = http.DefaultClient.Do(authedGet(t, s.srv.URL+"/document/"+rel, "43", "bob@example.com"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.DefaultClient.Do(authedGet(t, s.srv.URL+"/document/temp/ann@example.com_missing.csv", "42", "ann@example.com"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func authedGet(t *testing.T, url, sub, email string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, sub, email))
	return req
}

func TestHTTPStatusFromDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound("x"), http.StatusNotFound},
		{domain.ErrValidation("x"), http.StatusBadRequest},
		{domain.ErrSchema("x"), http.StatusBadRequest},
		{domain.ErrFilter("x"), http.StatusBadRequest},
		{domain.ErrCompilation("x"), http.StatusBadRequest},
		{domain.ErrConnection(nil, "x"), http.StatusBadGateway},
		{domain.ErrExecution(nil, "x"), http.StatusUnprocessableEntity},
		{domain.ErrExport(nil, "x"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, httpStatusFromDomainError(tc.err), tc.err.Error())
	}
}

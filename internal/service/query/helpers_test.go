package query

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dynquery/internal/catalog"
	"dynquery/internal/compiler"
	"dynquery/internal/db"
	"dynquery/internal/domain"
	"dynquery/internal/export"
	"dynquery/internal/tenant"
	"dynquery/internal/testutil"
)

const serviceCatalog = `
models:
  loan:
    row_num: number
    id: number
    amount: number
    client_id: number
    branch_id: number
    created_at: datetime
    note: text
    password: string
    status:
      type: option
      options:
        active: Active
        closed: Closed
  client:
    id: number
    name: string
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHolder(t *testing.T) *catalog.Holder {
	t.Helper()
	c, err := catalog.Parse([]byte(serviceCatalog))
	require.NoError(t, err)
	return catalog.NewStaticHolder(c)
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

// newMockService wires a Service to a mock executor and an in-memory exporter.
func newMockService(t *testing.T, exec *testutil.MockTenantExecutor) (*Service, *testutil.MockBlobStore, *testutil.MockNotifier) {
	t.Helper()
	store := &testutil.MockBlobStore{}
	notifier := &testutil.MockNotifier{}
	exp := export.NewExporter(store, notifier, export.NewMemoryJobStore(), export.Options{From: "no-reply@example.com"}, discardLogger())
	return NewService(testHolder(t), exec, exp, compiler.DefaultSourceOffset, discardLogger()), store, notifier
}

// newSQLiteService wires a Service to a real SQLite tenant named "acme".
func newSQLiteService(t *testing.T) (*Service, *tenant.MemoryRegistry) {
	t.Helper()
	dir := t.TempDir()
	w, err := db.OpenSQLite(filepath.Join(dir, "acme.sqlite"), db.ModeWrite, 0)
	require.NoError(t, err)
	stmts := []string{
		`CREATE TABLE client (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE loan (id INTEGER PRIMARY KEY, row_num INTEGER, amount REAL, client_id INTEGER, branch_id INTEGER, created_at DATETIME, note TEXT, password TEXT, status TEXT)`,
		`INSERT INTO client (id, name) VALUES (1, 'Ann'), (2, 'Bob')`,
		`INSERT INTO loan (id, row_num, amount, client_id, created_at, status) VALUES
			(1, 1, 100.5, 1, '2024-01-02 03:04:05', 'active'),
			(2, 2, 250, 2, '2024-02-03 10:00:00', 'closed'),
			(3, 3, 75, 2, '2024-03-04 12:30:00', 'active')`,
	}
	for _, s := range stmts {
		_, err := w.Exec(s)
		require.NoError(t, err, s)
	}
	require.NoError(t, w.Close())

	reg := tenant.NewMemoryRegistry()
	router := tenant.NewRouter(tenant.SQLiteDialect{Dir: dir}, tenant.NewDirectory(tenant.Config{}, nil), reg, discardLogger())
	t.Cleanup(func() { _ = router.Close() })
	return NewService(testHolder(t), router, nil, compiler.DefaultSourceOffset, discardLogger()), reg
}

func filters(t *testing.T, raw string) []domain.FilterCriterion {
	return decode[[]domain.FilterCriterion](t, raw)
}

package db

import (
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	write := buildDSN("/tmp/meta.sqlite", ModeWrite)
	assert.True(t, strings.HasPrefix(write, "/tmp/meta.sqlite?"))
	assert.Contains(t, write, "_journal_mode=WAL")
	assert.Contains(t, write, "_busy_timeout=5000")
	assert.Contains(t, write, "_foreign_keys=on")
	assert.Contains(t, write, "_txlock=immediate")

	read := buildDSN("/tmp/tenant.sqlite", ModeRead)
	assert.Contains(t, read, "_synchronous=NORMAL")
	assert.NotContains(t, read, "_txlock")
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), Mode("append"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_PoolSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenant.sqlite")

	w, err := OpenSQLite(path, ModeWrite, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	assert.Equal(t, 1, w.Stats().MaxOpenConnections)

	_, err = w.Exec("CREATE TABLE loan (id INTEGER PRIMARY KEY, amount REAL)")
	require.NoError(t, err)
	_, err = w.Exec("INSERT INTO loan (amount) VALUES (12.5)")
	require.NoError(t, err)

	r, err := OpenSQLite(path, ModeRead, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	assert.Equal(t, 4, r.Stats().MaxOpenConnections)

	var journal string
	require.NoError(t, r.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", strings.ToLower(journal))

	var amount float64
	require.NoError(t, r.QueryRow("SELECT amount FROM loan WHERE id = 1").Scan(&amount))
	assert.InDelta(t, 12.5, amount, 0.0001)
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/meta.db", ModeWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpenMetastoreMigrates(t *testing.T) {
	db := OpenTestSQLite(t)

	for _, table := range []string{"user_connections", "export_jobs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	// Migrations are idempotent.
	require.NoError(t, RunMigrations(db))
}

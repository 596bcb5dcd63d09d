// Package tenant routes queries to per-tenant databases and records which
// connection each user is running on.
package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"dynquery/internal/db"
)

// Dialect knows how to reach one kind of tenant database and how to
// identify and kill a server-side connection on it.
type Dialect interface {
	Name() string
	Open(ctx context.Context, t Config) (*sql.DB, error)
	ConnectionIDQuery() string
	KillStatement(id uint64) string
}

// MySQLDialect reaches MySQL/MariaDB tenants over TCP.
type MySQLDialect struct {
	MaxOpen int
}

// Name implements Dialect.
func (MySQLDialect) Name() string { return "mysql" }

// Open implements Dialect.
func (d MySQLDialect) Open(ctx context.Context, t Config) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	cfg.DBName = t.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = 10 * time.Second

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	pool := sql.OpenDB(connector)
	maxOpen := d.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 10
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(0)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", t.Database, err)
	}
	return pool, nil
}

// ConnectionIDQuery implements Dialect.
func (MySQLDialect) ConnectionIDQuery() string { return "SELECT CONNECTION_ID()" }

// KillStatement implements Dialect.
func (MySQLDialect) KillStatement(id uint64) string { return fmt.Sprintf("KILL %d", id) }

// SQLiteDialect serves tenants stored as SQLite files, one per tenant, for
// local development and tests. SQLite has no server-side connections, so the
// connection id is always 0 and kill only checks the tenant is reachable.
type SQLiteDialect struct {
	Dir     string
	MaxOpen int
}

// Name implements Dialect.
func (SQLiteDialect) Name() string { return "sqlite3" }

// Open implements Dialect.
func (d SQLiteDialect) Open(_ context.Context, t Config) (*sql.DB, error) {
	path := t.Path
	if path == "" {
		path = filepath.Join(d.Dir, t.Database+".sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tenant database %s: %w", path, err)
	}
	return db.OpenSQLite(path, db.ModeRead, d.MaxOpen)
}

// ConnectionIDQuery implements Dialect.
func (SQLiteDialect) ConnectionIDQuery() string { return "SELECT 0" }

// KillStatement implements Dialect.
func (SQLiteDialect) KillStatement(id uint64) string { return fmt.Sprintf("SELECT %d", id) }

// DialectFor returns the dialect registered under driver.
func DialectFor(driver, sqliteDir string, maxOpen int) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQLDialect{MaxOpen: maxOpen}, nil
	case "sqlite3", "sqlite":
		return SQLiteDialect{Dir: sqliteDir, MaxOpen: maxOpen}, nil
	default:
		return nil, fmt.Errorf("unsupported tenant driver %q", driver)
	}
}

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dynquery/internal/domain"
)

// Request is one statement to run on behalf of a user.
type Request struct {
	Tenant string
	UserID string
	SQL    string
	Args   []any
	// ClearOnSuccess removes the user's registry record once the statement
	// has completed successfully.
	ClearOnSuccess bool
}

// Router owns one connection source per tenant and runs each statement on
// a fresh physical connection whose id is recorded against the requesting
// user. Connections are never reused, so a recorded id stops naming a live
// connection once its statement has finished.
type Router struct {
	dialect   Dialect
	directory *Directory
	registry  domain.ConnectionRegistry
	logger    *slog.Logger

	mu    sync.Mutex
	pools map[string]*poolEntry
}

// poolEntry is a tenant pool being opened or ready. done is closed once db
// or err is set.
type poolEntry struct {
	done chan struct{}
	db   *sql.DB
	err  error
}

const openTimeout = 15 * time.Second

// NewRouter creates a router.
func NewRouter(dialect Dialect, directory *Directory, registry domain.ConnectionRegistry, logger *slog.Logger) *Router {
	return &Router{
		dialect:   dialect,
		directory: directory,
		registry:  registry,
		logger:    logger,
		pools:     make(map[string]*poolEntry),
	}
}

// Registry returns the connection registry the router records into.
func (r *Router) Registry() domain.ConnectionRegistry { return r.registry }

// pool returns the tenant's pool, opening it on first use. Opening happens
// outside r.mu so a slow tenant only delays callers of that tenant. A failed
// open is forgotten and retried by the next caller.
func (r *Router) pool(ctx context.Context, tenant string) (*sql.DB, error) {
	cfg, err := r.directory.Resolve(tenant)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	e, ok := r.pools[tenant]
	if !ok {
		e = &poolEntry{done: make(chan struct{})}
		r.pools[tenant] = e
	}
	r.mu.Unlock()

	if !ok {
		r.open(ctx, tenant, cfg, e)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, domain.ErrConnection(ctx.Err(), "connect to tenant %q", tenant)
	}
	return e.db, e.err
}

func (r *Router) open(ctx context.Context, tenant string, cfg Config, e *poolEntry) {
	defer close(e.done)

	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), openTimeout)
	defer cancel()
	p, err := r.dialect.Open(openCtx, cfg)
	if err != nil {
		e.err = domain.ErrConnection(err, "connect to tenant %q", tenant)
		r.mu.Lock()
		if r.pools[tenant] == e {
			delete(r.pools, tenant)
		}
		r.mu.Unlock()
		return
	}
	// No idle connections: closing a *sql.Conn closes the physical
	// connection instead of handing it to the next user.
	p.SetMaxIdleConns(0)
	e.db = p
	r.logger.Info("tenant pool opened", "tenant", tenant, "dialect", r.dialect.Name())
}

// Execute runs req on a dedicated physical connection and returns the fully
// read result. The connection is closed on every path.
func (r *Router) Execute(ctx context.Context, req Request) (*domain.ResultSet, error) {
	p, err := r.pool(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	conn, err := p.Conn(ctx)
	if err != nil {
		return nil, domain.ErrConnection(err, "acquire connection to tenant %q", req.Tenant)
	}
	defer conn.Close()

	var connID string
	if err := conn.QueryRowContext(ctx, r.dialect.ConnectionIDQuery()).Scan(&connID); err != nil {
		return nil, domain.ErrConnection(err, "read connection id on tenant %q", req.Tenant)
	}
	if req.UserID != "" {
		rec := domain.ConnectionRecord{ConnectionID: connID, Tenant: req.Tenant, StartedAt: time.Now().UTC()}
		if err := r.registry.Set(ctx, req.UserID, rec); err != nil {
			r.logger.Warn("record connection id failed", "user_id", req.UserID, "tenant", req.Tenant, "error", err)
		}
	}

	rows, err := conn.QueryContext(ctx, req.SQL, req.Args...)
	if err != nil {
		return nil, domain.ErrExecution(err, "query failed")
	}
	defer rows.Close()

	rs, err := Materialize(rows)
	if err != nil {
		return nil, domain.ErrExecution(err, "read results")
	}

	if req.ClearOnSuccess && req.UserID != "" {
		if err := r.registry.Clear(ctx, req.UserID); err != nil {
			r.logger.Warn("clear connection id failed", "user_id", req.UserID, "error", err)
		}
	}
	return rs, nil
}

// Kill terminates a server-side connection on the tenant from a separate
// connection.
func (r *Router) Kill(ctx context.Context, tenant string, connID uint64) error {
	p, err := r.pool(ctx, tenant)
	if err != nil {
		return err
	}
	conn, err := p.Conn(ctx)
	if err != nil {
		return domain.ErrConnection(err, "acquire connection to tenant %q", tenant)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, r.dialect.KillStatement(connID)); err != nil {
		return domain.ErrExecution(err, "kill connection %d", connID)
	}
	return nil
}

// Close closes every tenant pool, waiting for opens still in flight.
func (r *Router) Close() error {
	r.mu.Lock()
	entries := r.pools
	r.pools = make(map[string]*poolEntry)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.done
		if e.db == nil {
			continue
		}
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

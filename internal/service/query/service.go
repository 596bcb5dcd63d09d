// Package query implements the inbound operations of the query engine:
// dynamic object queries, counts, raw SQL, field introspection and
// cancellation.
package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dynquery/internal/catalog"
	"dynquery/internal/compiler"
	"dynquery/internal/domain"
	"dynquery/internal/export"
	"dynquery/internal/tenant"
)

// Executor runs SQL against tenant databases. Implemented by tenant.Router.
type Executor interface {
	Execute(ctx context.Context, req tenant.Request) (*domain.ResultSet, error)
	Kill(ctx context.Context, tenantName string, connID uint64) error
	Registry() domain.ConnectionRegistry
}

// Service compiles and runs dynamic queries.
type Service struct {
	catalog      *catalog.Holder
	exec         Executor
	exporter     *export.Exporter
	sourceOffset time.Duration
	logger       *slog.Logger

	exports sync.WaitGroup
}

// NewService creates a Service. exporter may be nil, in which case export
// delivery is rejected.
func NewService(holder *catalog.Holder, exec Executor, exporter *export.Exporter, sourceOffset time.Duration, logger *slog.Logger) *Service {
	return &Service{
		catalog:      holder,
		exec:         exec,
		exporter:     exporter,
		sourceOffset: sourceOffset,
		logger:       logger.With("component", "query"),
	}
}

func (s *Service) assembler() *compiler.Assembler {
	return compiler.NewAssembler(s.catalog.Current(), s.sourceOffset)
}

// ReloadCatalog re-reads the catalog file. The previous catalog stays active
// when the new one is invalid.
func (s *Service) ReloadCatalog(ctx context.Context) error {
	return s.catalog.Reload(ctx)
}

// Wait blocks until every background export has finished.
func (s *Service) Wait() {
	s.exports.Wait()
}

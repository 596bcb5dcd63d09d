package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Holder keeps the current catalog and swaps it atomically on reload.
type Holder struct {
	path    string
	current atomic.Pointer[Catalog]
	logger  *slog.Logger
}

// NewHolder loads the catalog at path and returns a holder for it.
func NewHolder(path string, logger *slog.Logger) (*Holder, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{path: path, logger: logger}
	h.current.Store(c)
	return h, nil
}

// NewStaticHolder wraps an already parsed catalog. Reload is a no-op.
func NewStaticHolder(c *Catalog) *Holder {
	h := &Holder{logger: slog.Default()}
	h.current.Store(c)
	return h
}

// Current returns the catalog in effect.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Reload re-reads the catalog file. The previous catalog stays in effect
// when the new one fails to load.
func (h *Holder) Reload(_ context.Context) error {
	if h.path == "" {
		return nil
	}
	c, err := LoadFile(h.path)
	if err != nil {
		h.logger.Warn("catalog reload failed", "path", h.path, "error", err)
		return err
	}
	h.current.Store(c)
	h.logger.Info("catalog reloaded", "path", h.path, "models", len(c.models))
	return nil
}

// Reloader reloads a Holder on a cron schedule.
type Reloader struct {
	cron     *cron.Cron
	holder   *Holder
	schedule string
	logger   *slog.Logger
	mu       sync.Mutex
	entry    cron.EntryID
}

// NewReloader creates a reloader for the given cron spec.
func NewReloader(holder *Holder, schedule string, logger *slog.Logger) *Reloader {
	return &Reloader{
		cron:     cron.New(),
		holder:   holder,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the reload job and starts the scheduler. An empty schedule
// leaves the reloader idle.
func (r *Reloader) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		return nil
	}
	entry, err := r.cron.AddFunc(r.schedule, func() {
		_ = r.holder.Reload(context.Background())
	})
	if err != nil {
		return err
	}
	r.entry = entry
	r.cron.Start()
	r.logger.Info("catalog reloader started", "schedule", r.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running reload to finish.
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entry == 0 {
		return
	}
	<-r.cron.Stop().Done()
	r.cron.Remove(r.entry)
	r.entry = 0
	r.logger.Info("catalog reloader stopped")
}

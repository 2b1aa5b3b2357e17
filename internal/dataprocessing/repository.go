package dataprocessing

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadRecorder observes dataset loads, typically to update metrics.
type LoadRecorder interface {
	RecordLoad(ctx context.Context, source string, rows int, duration time.Duration, err error)
}

// TableLoader loads a Table from a path. *Loader implements it.
type TableLoader interface {
	Load(ctx context.Context, path string) (*Table, error)
}

// Repository caches loaded tables by path for the life of the process.
// Tables it hands out are never modified; Reload swaps in a new one.
type Repository struct {
	loader   TableLoader
	logger   *slog.Logger
	recorder LoadRecorder

	mu     sync.RWMutex
	tables map[string]*Table
	group  singleflight.Group
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLoadRecorder registers an observer for every load attempt.
func WithLoadRecorder(rec LoadRecorder) RepositoryOption {
	return func(r *Repository) { r.recorder = rec }
}

// NewRepository creates an empty repository.
func NewRepository(loader TableLoader, logger *slog.Logger, opts ...RepositoryOption) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		loader: loader,
		logger: logger.With(slog.String("component", "repository")),
		tables: make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cached table for path, loading it on first use.
// Concurrent first calls share a single load. The shared load is detached
// from the caller's cancellation; a cancelled caller stops waiting but the
// load still completes for the others.
func (r *Repository) Get(ctx context.Context, path string) (*Table, error) {
	key := filepath.Clean(path)
	if t, ok := r.cached(key); ok {
		return t, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	return r.wait(ctx, r.group.DoChan(key, func() (any, error) {
		if t, ok := r.cached(key); ok {
			return t, nil
		}
		t, err := r.load(loadCtx, key)
		if err != nil {
			return nil, err
		}
		r.store(key, t)
		return t, nil
	}))
}

// Reload loads path again and replaces the cached table. On failure the
// previous table, if any, stays cached.
func (r *Repository) Reload(ctx context.Context, path string) (*Table, error) {
	key := filepath.Clean(path)
	loadCtx := context.WithoutCancel(ctx)
	return r.wait(ctx, r.group.DoChan("reload:"+key, func() (any, error) {
		t, err := r.load(loadCtx, key)
		if err != nil {
			return nil, err
		}
		r.store(key, t)
		r.logger.InfoContext(loadCtx, "Dataset reloaded", slog.String("source", key), slog.Int("rows", t.Len()))
		return t, nil
	}))
}

func (r *Repository) wait(ctx context.Context, ch <-chan singleflight.Result) (*Table, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached table for path.
func (r *Repository) Invalidate(path string) {
	key := filepath.Clean(path)
	r.mu.Lock()
	delete(r.tables, key)
	r.mu.Unlock()
	r.logger.Debug("Dataset cache invalidated", slog.String("source", key))
}

func (r *Repository) cached(key string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[key]
	return t, ok
}

func (r *Repository) store(key string, t *Table) {
	r.mu.Lock()
	r.tables[key] = t
	r.mu.Unlock()
}

func (r *Repository) load(ctx context.Context, key string) (*Table, error) {
	start := time.Now()
	t, err := r.loader.Load(ctx, key)
	if r.recorder != nil {
		rows := 0
		if t != nil {
			rows = t.Len()
		}
		r.recorder.RecordLoad(ctx, key, rows, time.Since(start), err)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Dataset load failed", slog.String("source", key), slog.String("error", err.Error()))
	}
	return t, err
}

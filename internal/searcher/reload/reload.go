// Package reload swaps a freshly persisted index into a running search
// service, either on request or when an index.complete event arrives.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/kafka"
)

// Index is the part of *indexer.Engine a reload touches.
type Index interface {
	Load() error
	Stats() indexer.Stats
}

// Invalidator drops cached results. *cache.QueryCache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

type Reloader struct {
	mu     sync.Mutex
	index  Index
	cache  Invalidator
	logger *slog.Logger
}

// New returns a Reloader for idx. cache may be nil when caching is off.
func New(idx Index, cache Invalidator) *Reloader {
	return &Reloader{
		index:  idx,
		cache:  cache,
		logger: slog.Default().With("component", "index-reloader"),
	}
}

// Reload loads the persisted index and invalidates the cache. Cache entries
// are keyed by generation, so a failed invalidation only leaves garbage
// behind and is logged, not returned. A failed load leaves the engine empty
// and is returned.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	loadErr := r.index.Load()
	if r.cache != nil {
		if _, err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	if loadErr != nil {
		return fmt.Errorf("reloading index: %w", loadErr)
	}
	stats := r.index.Stats()
	r.logger.Info("index reloaded",
		"generation", stats.Generation,
		"documents", stats.Documents,
		"terms", stats.Terms,
	)
	return nil
}

// Handle is a kafka.MessageHandler for index.complete events.
func (r *Reloader) Handle(ctx context.Context, key, value []byte) error {
	ev, err := kafka.DecodeJSON[notify.IndexComplete](value)
	if err != nil {
		return err
	}
	r.logger.Info("index.complete received",
		"path", ev.Path,
		"generation", ev.Generation,
		"documents", ev.Documents,
	)
	return r.Reload(ctx)
}

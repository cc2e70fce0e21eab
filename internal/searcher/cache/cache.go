// Package cache keeps ranked search results in Redis. Keys embed the index
// generation, so a rebuilt or reloaded index never serves stale rankings even
// before the old keys expire.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
)

const keyPrefix = "kws:search:"

// Store is the key-value backend. *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Result is one cached search response.
type Result struct {
	Query      string        `json:"query"`
	Limit      int           `json:"limit"`
	Generation uint64        `json:"generation"`
	Hits       []indexer.Hit `json:"results"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks up a cached result. Backend and decode failures count as misses.
func (c *QueryCache) Get(ctx context.Context, generation uint64, query string, limit int) (*Result, bool) {
	key := Key(generation, query, limit)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &result, true
}

// Set stores result under its generation, query and limit.
func (c *QueryCache) Set(ctx context.Context, result *Result) {
	key := Key(result.Generation, result.Query, result.Limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key across
// concurrent callers and caches its output. cached reports whether the
// result came from the store.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	query string,
	limit int,
	compute func() (*Result, error),
) (result *Result, cached bool, err error) {
	if result, ok := c.Get(ctx, generation, query, limit); ok {
		return result, true, nil
	}
	key := Key(generation, query, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Result), false, nil
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key derives the store key. Queries are compared case-insensitively with
// whitespace collapsed. Repetition is kept since a repeated term adds its
// score again. Word order is kept as well because per-term scores are
// summed in query order and float addition is not associative.
func Key(generation uint64, query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	raw := fmt.Sprintf("%d|%s|%d", generation, normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Package cache keeps rendered search results in Redis, keyed by the
// normalized query and the result limit. Concurrent misses for the same key
// are collapsed into a single computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/parser"
	pkgredis "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/resilience"
)

const (
	keyPrefix = "search:"
	// defaultComputeTimeout bounds a shared computation once it no longer
	// belongs to any single caller.
	defaultComputeTimeout = 10 * time.Second
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store          Store
	namespace      string
	ttl            time.Duration
	breaker        *resilience.CircuitBreaker
	group          singleflight.Group
	computeTimeout time.Duration
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

// New creates a cache. namespace separates entries of different corpora
// sharing one Redis; breaker may be nil.
func New(store Store, namespace string, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	return &QueryCache{
		store:          store,
		namespace:      namespace,
		ttl:            ttl,
		breaker:        breaker,
		computeTimeout: defaultComputeTimeout,
		logger:         slog.Default().With("component", "query-cache"),
	}
}

// SetComputeTimeout bounds how long a shared miss computation may run.
func (c *QueryCache) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		c.computeTimeout = d
	}
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

// Get looks up cached hits. Any Redis failure is logged and reported as a miss.
func (c *QueryCache) Get(ctx context.Context, plan *parser.QueryPlan, limit int) ([]executor.Hit, bool) {
	key := c.buildKey(plan, limit)
	var data string
	found := false
	err := c.guard(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var hits []executor.Hit
	if err := json.Unmarshal([]byte(data), &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", plan.RawQuery, "key", key)
	return hits, true
}

// Set stores hits; failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, plan *parser.QueryPlan, limit int, hits []executor.Hit) {
	key := c.buildKey(plan, limit)
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.guard(func() error { return c.store.Set(ctx, key, data, c.ttl) }); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached hits or computes, stores and returns them.
// The boolean reports a cache hit.
//
// Concurrent misses for one key share a single computation. That
// computation runs on a context detached from whichever caller started it,
// bounded by the compute timeout, so one caller giving up never fails the
// others. Each caller still stops waiting when its own ctx ends.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	limit int,
	computeFn func(ctx context.Context) ([]executor.Hit, error),
) ([]executor.Hit, bool, error) {
	if hits, ok := c.Get(ctx, plan, limit); ok {
		return hits, true, nil
	}
	key := c.buildKey(plan, limit)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		hits, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, plan, limit, hits)
		return hits, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]executor.Hit), false, nil
	}
}

// Invalidate drops every entry of this cache's namespace.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	pattern := fmt.Sprintf("%s%s:*", keyPrefix, c.namespace)
	var deleted int64
	err := c.guard(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, pattern)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(plan *parser.QueryPlan, limit int) string {
	raw := fmt.Sprintf("%s\x00limit=%d", plan.Key(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.namespace, hash[:16])
}

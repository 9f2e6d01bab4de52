// Package cache provides a bounded, TTL-based memoizing cache that
// guarantees at most one concurrent computation per key. It exists because
// backing-store lookups and creates are expensive and not idempotent under
// races: creating an identity twice for one durable key is a correctness
// bug, not just wasted work.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// ComputeError wraps a failure of the compute function handed to
// GetOrCompute. Every caller waiting on that computation receives it; the
// cache entry is not populated, so the next call retries fresh.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute value for key %q: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache memoizes expensive computations by string key.
//
// Guarantees:
//   - At most one concurrent computation per key; concurrent callers for the
//     same key block on the in-flight computation and share its result or
//     its error.
//   - At most capacity ready entries, evicting least-recently-accessed
//     first. In-flight computations never count against capacity.
//   - An entry older than ttl is treated as absent on access, removed, and
//     recomputed once no matter how many callers arrive for the stale key.
//   - Failed computations are never cached.
//   - Eviction and expiry never interrupt an in-flight computation.
type Cache[V any] struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.Mutex
	entries *simplelru.LRU[string, entry[V]]

	now func() time.Time // overridable in tests
}

// New creates a Cache holding at most capacity ready entries, each fresh for
// ttl after its computation completed.
func New[V any](capacity int, ttl time.Duration) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	entries, err := simplelru.NewLRU[string, entry[V]](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache[V]{ttl: ttl, entries: entries, now: time.Now}, nil
}

// GetOrCompute returns the cached value for key, or runs compute to produce
// it. If another computation for key is already in flight, the caller blocks
// until it finishes and shares its outcome. A compute failure is returned to
// all waiters wrapped in *ComputeError and leaves no entry behind.
//
// The caller may bound its wait with ctx; on expiry it receives ctx.Err()
// while the computation keeps running so other waiters still benefit. The
// detached context passed to compute carries ctx's values but not its
// deadline or cancellation.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	// Register on (or attach to) the in-flight computation for this key.
	// DoChan rather than Do so a timed-out caller can abandon the wait
	// without aborting the computation.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, &ComputeError{Key: key, Err: res.Err}
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// lookup returns the value for key if a ready, unexpired entry exists.
// An expired entry is removed so the caller starts from a miss.
func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		c.entries.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, entry[V]{value: v, createdAt: c.now()})
}

// Len returns the number of ready entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Remove drops the ready entry for key, if any. An in-flight computation for
// key is unaffected.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Purge drops all ready entries.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// RemoveExpired drops every entry older than ttl and reports how many were
// removed. The janitor calls this periodically; correctness does not depend
// on it since lookup treats expired entries as absent.
func (c *Cache[V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && c.now().Sub(e.createdAt) > c.ttl {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Package cache implements the three reference-counted LRU caches shared by
// every Query Database opened in the api-server process: a connection cache
// (dump file path -> open Dump Store reader), a document cache, and a
// result-chunk cache.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Factory produces the value for a cache miss.
type Factory[V any] func() (V, error)

// entry wraps a cached value with the bookkeeping needed to defer eviction
// while the value is in use by one or more callers.
type entry[V any] struct {
	value    V
	refCount int
	evicted  bool
}

// Cache is a capacity-bounded LRU cache whose entries are pinned for the
// duration of a WithEntry call. An entry whose capacity-driven eviction
// races with an in-flight pin is not closed until every pinning caller has
// released it, so a caller never observes a value being torn down underneath
// it. Concurrent misses on the same key coalesce onto a single Factory call.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	lru     *lru.Cache[K, *entry[V]]
	inFlight map[K]*sync.WaitGroup
	closer  func(V) error
}

// New creates a cache with the given capacity (measured in entry count).
// closer, if non-nil, is invoked on a value once it has been evicted and
// every pin on it has been released.
func New[K comparable, V any](capacity int, closer func(V) error) *Cache[K, V] {
	c := &Cache[K, V]{inFlight: map[K]*sync.WaitGroup{}, closer: closer}

	backing, _ := lru.NewWithEvict[K, *entry[V]](capacity, func(_ K, e *entry[V]) {
		c.mu.Lock()
		e.evicted = true
		shouldClose := e.refCount == 0
		c.mu.Unlock()

		if shouldClose && c.closer != nil {
			_ = c.closer(e.value)
		}
	})
	c.lru = backing

	return c
}

// WithEntry fetches (creating via factory on a miss) the entry keyed by key,
// pins it for the duration of user, and releases the pin before returning.
// If the entry was evicted while pinned, it is closed here instead of by the
// eviction callback.
func (c *Cache[K, V]) WithEntry(key K, factory Factory[V], user func(V) error) error {
	e, err := c.acquire(key, factory)
	if err != nil {
		return err
	}

	defer c.release(key, e)

	return user(e.value)
}

func (c *Cache[K, V]) acquire(key K, factory Factory[V]) (*entry[V], error) {
	for {
		c.mu.Lock()
		if e, ok := c.lru.Get(key); ok {
			e.refCount++
			c.mu.Unlock()
			return e, nil
		}

		if wg, ok := c.inFlight[key]; ok {
			c.mu.Unlock()
			wg.Wait()
			continue
		}

		wg := &sync.WaitGroup{}
		wg.Add(1)
		c.inFlight[key] = wg
		c.mu.Unlock()

		value, err := factory()

		var e *entry[V]
		if err == nil {
			e = &entry[V]{value: value, refCount: 1}
			c.lru.Add(key, e)
		}

		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
		wg.Done()

		if err != nil {
			return nil, err
		}

		return e, nil
	}
}

func (c *Cache[K, V]) release(key K, e *entry[V]) {
	c.mu.Lock()
	e.refCount--
	shouldClose := e.evicted && e.refCount == 0
	c.mu.Unlock()

	if shouldClose && c.closer != nil {
		_ = c.closer(e.value)
	}
}

// Len reports the number of entries currently resident, pinned or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

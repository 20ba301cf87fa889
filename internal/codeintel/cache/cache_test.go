package cache

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWithEntryCreatesOnMissReusesOnHit(t *testing.T) {
	var factoryCalls int32

	c := New[string, int](10, nil)
	factory := func() (int, error) {
		atomic.AddInt32(&factoryCalls, 1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		err := c.WithEntry("k", factory, func(v int) error {
			if v != 42 {
				t.Errorf("unexpected value: %d", v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}

	if calls := atomic.LoadInt32(&factoryCalls); calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
}

func TestConcurrentMissesCoalesce(t *testing.T) {
	var factoryCalls int32

	c := New[string, int](10, nil)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = c.WithEntry("k", func() (int, error) {
				atomic.AddInt32(&factoryCalls, 1)
				return 7, nil
			}, func(int) error { return nil })
		}()
	}
	close(start)
	wg.Wait()

	if calls := atomic.LoadInt32(&factoryCalls); calls != 1 {
		t.Errorf("expected exactly one factory call across concurrent misses, got %d", calls)
	}
}

func TestEvictionClosesUnpinnedEntry(t *testing.T) {
	var closed []int

	c := New[int, int](1, func(v int) error {
		closed = append(closed, v)
		return nil
	})

	mustAdd := func(key, value int) {
		err := c.WithEntry(key, func() (int, error) { return value, nil }, func(int) error { return nil })
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}

	mustAdd(1, 100)
	mustAdd(2, 200) // evicts key 1, since capacity is 1 and entry 1 isn't pinned

	if len(closed) != 1 || closed[0] != 100 {
		t.Errorf("expected entry 100 to be closed on eviction, got %+v", closed)
	}
}

func TestEvictionWhilePinnedDefersClose(t *testing.T) {
	var closed []int

	c := New[int, int](1, func(v int) error {
		closed = append(closed, v)
		return nil
	})

	err := c.WithEntry(1, func() (int, error) { return 100, nil }, func(int) error {
		// While entry 1 is pinned here, force an eviction by adding a second
		// key to a capacity-1 cache.
		return c.WithEntry(2, func() (int, error) { return 200, nil }, func(int) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(closed) != 1 || closed[0] != 100 {
		t.Errorf("expected entry 100 to close exactly once, after its pin released: %+v", closed)
	}
}

func TestLen(t *testing.T) {
	c := New[int, int](10, nil)
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got len %d", c.Len())
	}

	_ = c.WithEntry(1, func() (int, error) { return 1, nil }, func(int) error { return nil })
	_ = c.WithEntry(2, func() (int, error) { return 2, nil }, func(int) error { return nil })

	if c.Len() != 2 {
		t.Errorf("expected len 2, got %d", c.Len())
	}
}

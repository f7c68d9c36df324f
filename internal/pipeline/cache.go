package pipeline

import (
	"context"
	"sync"

	"github.com/couchcryptid/station-quality-service/internal/observability"
)

// CachedService wraps a Service with an in-memory LRU cache keyed by file
// content, so re-submitting an identical file returns the earlier report.
type CachedService struct {
	inner   Service
	cache   *lruCache[string, *Report]
	metrics *observability.Metrics
}

// NewCachedService creates a cache decorator around a Service.
func NewCachedService(inner Service, maxEntries int, metrics *observability.Metrics) *CachedService {
	return &CachedService{
		inner:   inner,
		cache:   newLRUCache[string, *Report](maxEntries),
		metrics: metrics,
	}
}

// Analyze returns the cached report for identical content, relabelled with
// the caller's source name, or delegates to the wrapped Service. Failures are
// not cached.
func (c *CachedService) Analyze(ctx context.Context, in Input) (*Report, error) {
	key := ContentHash(in.Data)
	if report, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		if in.Progress != nil {
			in.Progress.OnProgress(1)
		}
		hit := *report
		hit.Source = in.Name
		return &hit, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	report, err := c.inner.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, report)
	return report, nil
}

// Len returns the number of cached reports.
func (c *CachedService) Len() int {
	return c.cache.len()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries <= 0 {
		return
	}
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

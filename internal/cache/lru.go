package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache whose entries also expire after a TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time

	hits, misses uint64
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRUCache builds a cache for at most maxSize entries (minimum 1).
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if c.now().After(e.expiresAt) {
		c.remove(elem)
		c.misses++
		return zero, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return e.value, true
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}
	c.items[key] = c.lru.PushFront(e)
	for c.lru.Len() > c.maxSize {
		c.remove(c.lru.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// DeletePrefix drops every key starting with prefix and returns how many
// were removed. Services key entries by user so one call invalidates a user.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(elem)
			n++
		}
	}
	return n
}

func (c *LRUCache[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.lru.Remove(elem)
}

// CleanExpired drops expired entries and returns the count removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			c.remove(elem)
			n++
		}
		elem = next
	}
	return n
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports lookups since construction.
func (c *LRUCache[T]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

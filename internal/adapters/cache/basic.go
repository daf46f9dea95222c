package cache

import (
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	data  T
	valid bool
}

// memoryCache keeps entries until they are overwritten or invalidated.
type memoryCache[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
}

func (c *memoryCache[T]) getOrClaim(key string) hitResult[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.entries[key] = memoryEntry[T]{valid: false}
		return hitResult[T]{valid: false, claimed: true}
	}

	return hitResult[T]{data: entry.data, valid: entry.valid, claimed: false}
}

func (c *memoryCache[T]) set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry[T]{data: data, valid: true}
}

func (c *memoryCache[T]) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *memoryCache[T]) wait() {
	time.Sleep(10 * time.Millisecond)
}

// NewBasicCache returns a cache without expiry. Wallet balances use it since
// push events keep them current.
func NewBasicCache[T any]() Cache[T] {
	return &memoryCache[T]{
		entries: make(map[string]memoryEntry[T]),
	}
}

package channels

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// senderCache builds one sender per configuration key. Concurrent callers
// asking for the same key share a single build; failed builds are not cached.
type senderCache[T any] struct {
	mu     sync.RWMutex
	built  map[string]T
	flight singleflight.Group
}

func newSenderCache[T any]() *senderCache[T] {
	return &senderCache[T]{built: make(map[string]T)}
}

func (c *senderCache[T]) get(ctx context.Context, key string, build func(context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.built[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.RLock()
		v, ok := c.built[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		v, err := build(ctx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.built[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (c *senderCache[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.built)
}

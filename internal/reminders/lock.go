package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a reminder pass across processes sharing one store.
type Locker interface {
	// Acquire returns ok=false when another holder owns the key. release is
	// non-nil only when ok is true.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker builds a locker. Keys are namespaced by prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if client == nil {
		panic("reminders: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "clinic:reminders:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire tries once; it does not wait for the current holder.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reminders: acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("reminders: release lock %s: %w", fullKey, err)
		}
		return nil
	}
	return release, true, nil
}

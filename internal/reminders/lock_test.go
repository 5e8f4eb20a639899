package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, "test:")

	release, ok, err := locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:run"))

	_, ok, err = locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("test:run"))

	_, ok, err = locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpiresAndIgnoresStaleRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, "")

	staleRelease, ok, err := locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken over")

	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("clinic:reminders:lock:run"), "stale release must not delete the new holder's lock")
}

func TestRedisLockerGuardsScheduler(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, "")

	release, ok, err := locker.Acquire(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release(context.Background())

	s := newTestScheduler(nil, nil, nil, WithLocker(locker, time.Minute))
	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestSectionLockExcludesOtherOwners(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewSectionLock(client, 30*time.Second)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "es-1", "booking-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// A second owner is refused without error.
	ok, err = lock.Lock(ctx, "es-1", "booking-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different section is independent.
	ok, err = lock.Lock(ctx, "es-2", "booking-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSectionLockUnlockIsOwnerChecked(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewSectionLock(client, 30*time.Second)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "es-1", "booking-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Someone else's unlock leaves the lock in place.
	require.NoError(t, lock.Unlock(ctx, "es-1", "booking-2"))
	ok, err = lock.Lock(ctx, "es-1", "booking-3")
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder's unlock frees it.
	require.NoError(t, lock.Unlock(ctx, "es-1", "booking-1"))
	ok, err = lock.Lock(ctx, "es-1", "booking-3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSectionLockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewSectionLock(client, 1*time.Second)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "es-1", "booking-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	// The TTL bounds how long a crashed holder can block others.
	ok, err = lock.Lock(ctx, "es-1", "booking-2")
	require.NoError(t, err)
	assert.True(t, ok)

	// Unlocking the expired lock is a no-op.
	require.NoError(t, lock.Unlock(ctx, "es-1", "booking-1"))
	ok, err = lock.Lock(ctx, "es-1", "booking-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/pipette/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "pipette:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "/dev/ttyACM0", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("pipette:lock:/dev/ttyACM0"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("pipette:lock:/dev/ttyACM0"))
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	first := redis.NewLocker(client, "pipette:")
	second := redis.NewLocker(client, "pipette:")
	ctx := context.Background()

	unlock1, err := first.Lock(ctx, "robot", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "robot", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "held elsewhere")

	require.NoError(t, unlock1(ctx))

	unlock2, err := second.Lock(ctx, "robot", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "pipette:")
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "robot", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := locker.Lock(ctx, "robot", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("pipette:lock:robot"), "an expired holder must not release the new lock")
	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("pipette:lock:robot"))
}

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/aliquot/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, opts ...redis.LockerOption) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewLocker(client, "aliquot:", opts...), mr
}

func TestLocker_LockUnlock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "robot-1", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "aliquot:lock:robot-1", locker.Key("robot-1"))
	assert.True(t, mr.Exists("aliquot:lock:robot-1"))
	assert.Equal(t, 5*time.Second, mr.TTL("aliquot:lock:robot-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("aliquot:lock:robot-1"))
	// a second release is harmless
	require.NoError(t, unlock(ctx))
}

func TestLocker_Contention(t *testing.T) {
	locker, _ := newLocker(t, redis.WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "robot-1", 5*time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "robot-1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// another robot is independent
	other, err := locker.Lock(ctx, "robot-2", 5*time.Second)
	require.NoError(t, err)
	defer other(ctx)

	acquired := make(chan struct{})
	go func() {
		u, err := locker.Lock(ctx, "robot-1", 5*time.Second)
		if err == nil {
			defer u(ctx)
			close(acquired)
		}
	}()
	require.NoError(t, unlock(ctx))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never took the released lock")
	}
}

func TestLocker_Renews(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "robot-1", 200*time.Millisecond)
	require.NoError(t, err)
	defer unlock(ctx)

	mr.SetTTL("aliquot:lock:robot-1", 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("aliquot:lock:robot-1") == 200*time.Millisecond
	}, time.Second, 10*time.Millisecond)
}

func TestLocker_UnlockKeepsForeignLock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "robot-1", time.Second)
	require.NoError(t, err)

	// the lease expired and another replica took the robot
	require.NoError(t, mr.Set("aliquot:lock:robot-1", "someone-else"))

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("aliquot:lock:robot-1"))
}

func TestLocker_RedisDown(t *testing.T) {
	client := backend.NewClient(&backend.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	locker := redis.NewLocker(client, "aliquot:")

	_, err := locker.Lock(context.Background(), "robot-1", time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
}

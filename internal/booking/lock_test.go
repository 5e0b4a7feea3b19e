package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "booking:Electric:Battery", booking.LockKey("Electric", "Battery"))
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newRedis(t)
	l := booking.NewRedisLocker(rdb, 30*time.Second, 100*time.Millisecond)
	ctx := context.Background()
	key := booking.LockKey("Electric", "Battery")

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = l.Acquire(ctx, key)
	assert.ErrorIs(t, err, booking.ErrLockTimeout)

	// Other systems are independent.
	other, err := l.Acquire(ctx, booking.LockKey("Electric", "Powertrain"))
	require.NoError(t, err)
	other()

	require.NoError(t, release())
	assert.False(t, mr.Exists(key))

	again, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr, rdb := newRedis(t)
	l := booking.NewRedisLocker(rdb, time.Second, 100*time.Millisecond)
	ctx := context.Background()
	key := booking.LockKey("Solar", "Array")

	stale, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists(key), "old holder must not delete the new holder's lock")
	fresh()
	assert.False(t, mr.Exists(key))
}

func TestRedisLocker_ReleaseReportsFailure(t *testing.T) {
	mr, rdb := newRedis(t)
	l := booking.NewRedisLocker(rdb, 30*time.Second, 100*time.Millisecond)

	release, err := l.Acquire(context.Background(), booking.LockKey("Solar", "Array"))
	require.NoError(t, err)
	mr.Close()

	err = release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release booking:Solar:Array")
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	_, rdb := newRedis(t)
	l := booking.NewRedisLocker(rdb, 30*time.Second, 2*time.Second)
	ctx := context.Background()
	key := booking.LockKey("Electric", "Battery")

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	second()
}

func TestLocalLocker(t *testing.T) {
	l := booking.NewLocalLocker(50 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, booking.ErrLockTimeout)

	other, err := l.Acquire(ctx, "other")
	require.NoError(t, err)
	other()

	assert.NoError(t, release())
	assert.NoError(t, release())
	next, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	next()
}

func TestLocalLocker_WaitsForRelease(t *testing.T) {
	l := booking.NewLocalLocker(2 * time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	second()
}

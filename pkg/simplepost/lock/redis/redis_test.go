package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redislock "github.com/tendant/simple-post/pkg/simplepost/lock/redis"
)

func newLocker(t *testing.T, opts ...redislock.Option) (*redislock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts = append([]redislock.Option{redislock.WithRetryInterval(5 * time.Millisecond)}, opts...)
	return redislock.New(client, opts...), mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "post:hello")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redislock.DefaultPrefix+"post:hello"))

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "post:hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(redislock.DefaultPrefix+"post:hello"))

	again, err := locker.Lock(ctx, "post:hello")
	require.NoError(t, err)
	again()
}

func TestLocker_ExpiredHolderDoesNotReleaseNewOwner(t *testing.T) {
	locker, mr := newLocker(t, redislock.WithTTL(time.Second))
	ctx := context.Background()
	key := redislock.DefaultPrefix + "post:hello"

	stale, err := locker.Lock(ctx, "post:hello")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	fresh, err := locker.Lock(ctx, "post:hello")
	require.NoError(t, err)
	owner, err := mr.Get(key)
	require.NoError(t, err)

	stale()
	current, err := mr.Get(key)
	require.NoError(t, err, "stale release must not delete the new owner's key")
	assert.Equal(t, owner, current)

	fresh()
	assert.False(t, mr.Exists(key))
}

func TestLocker_HolderRenewsLease(t *testing.T) {
	locker, mr := newLocker(t, redislock.WithTTL(300*time.Millisecond))
	key := redislock.DefaultPrefix + "post:slow"

	unlock, err := locker.Lock(context.Background(), "post:slow")
	require.NoError(t, err)

	// Redis time advances well past the TTL while the holder is still working.
	for i := 0; i < 4; i++ {
		time.Sleep(150 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
		require.True(t, mr.Exists(key), "lease expired after %d rounds", i+1)
	}

	unlock()
	assert.False(t, mr.Exists(key))

	time.Sleep(150 * time.Millisecond)
	assert.False(t, mr.Exists(key), "renewal must stop after release")
}

func TestLocker_RenewalLeavesNewOwnerAlone(t *testing.T) {
	locker, mr := newLocker(t, redislock.WithTTL(300*time.Millisecond))
	key := redislock.DefaultPrefix + "post:taken"

	unlock, err := locker.Lock(context.Background(), "post:taken")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set(key, "someone-else"))
	mr.SetTTL(key, time.Second)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, time.Second, mr.TTL(key))

	unlock()
	current, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", current)
}

func TestLocker_CustomPrefix(t *testing.T) {
	locker, mr := newLocker(t, redislock.WithPrefix("blog:"))

	unlock, err := locker.Lock(context.Background(), "post:x")
	require.NoError(t, err)
	defer unlock()

	assert.True(t, mr.Exists("blog:post:x"))
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	locker, err := redislock.NewFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer locker.Close()

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()

	_, err = redislock.NewFromURL("not-a-url")
	assert.Error(t, err)
}

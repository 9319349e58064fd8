package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locker interface {
	Acquire(ctx context.Context, name string) (Release, error)
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

// exclusive runs many goroutines through the same lock and checks that no
// two of them are ever inside at once.
func exclusive(t *testing.T, l locker, name string) {
	var inside, maxInside, done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), name)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(20), done)
}

func TestLocal_Exclusive(t *testing.T) {
	exclusive(t, NewLocal(), "order:1")
}

func TestLocal_TimesOutWhileHeld(t *testing.T) {
	l := NewLocal()
	l.wait = 20 * time.Millisecond
	release, err := l.Acquire(context.Background(), "order:1")
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "order:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// other names are independent
	other, err := l.Acquire(context.Background(), "order:2")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(context.Background(), "order:1")
	require.NoError(t, err)
	again()
}

func TestRedis_Exclusive(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	client.Del(context.Background(), keyPrefix+"test-order")

	exclusive(t, NewRedis(client).WithTimings(DefaultTTL, 10*time.Second), "test-order")
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	ctx := context.Background()
	key := keyPrefix + "test-expired"
	client.Del(ctx, key)

	l := NewRedis(client).WithTimings(50*time.Millisecond, 20*time.Millisecond)
	release, err := l.Acquire(ctx, "test-expired")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "test-expired")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// expire and let someone else take it over
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, client.Set(ctx, key, "someone-else", time.Minute).Err())

	release()
	val, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
	client.Del(ctx, key)
}

// Package lock provides short-lived named locks used to serialize work on a
// single order across requests and service instances.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "lock:"

	DefaultTTL  = 10 * time.Second
	DefaultWait = 2 * time.Second
	retryEvery  = 25 * time.Millisecond
)

// ErrNotAcquired is returned when the lock stays held by someone else for
// the whole wait period.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives the lock back. It is safe to call more than once.
type Release func()

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, ttl: DefaultTTL, wait: DefaultWait}
}

// WithTimings overrides the lock expiry and the acquisition wait.
func (r *Redis) WithTimings(ttl, wait time.Duration) *Redis {
	return &Redis{client: r.client, ttl: ttl, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, name string) (Release, error) {
	key := keyPrefix + name
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrNotAcquired
			}
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// the caller's context may be gone by now
					rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
					defer rcancel()
					_ = releaseScript.Run(rctx, r.client, []string{key}, token).Err()
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(retryEvery):
		}
	}
}

// Local is an in-process Locker for single-instance deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewLocal() *Local {
	return &Local{held: map[string]chan struct{}{}, wait: DefaultWait}
}

func (l *Local) Acquire(ctx context.Context, name string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	for {
		l.mu.Lock()
		ch, busy := l.held[name]
		if !busy {
			ch = make(chan struct{})
			l.held[name] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, name)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-ch:
		}
	}
}

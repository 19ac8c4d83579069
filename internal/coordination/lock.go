// Package coordination keeps automation runs from overlapping, across
// goroutines in one process or across instances sharing a Redis.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block other runs.
const DefaultLockTTL = 15 * time.Minute

var (
	// ErrLockNotAcquired is returned by TryLock when another holder has the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

// UnlockFunc releases a lock obtained from TryLock.
type UnlockFunc func(ctx context.Context) error

// Locker hands out a single exclusive lease.
type Locker interface {
	TryLock(ctx context.Context) (UnlockFunc, error)
}

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLock is a Locker backed by a Redis key set with NX and a TTL. Each
// acquisition writes a fresh token so a holder can only release its own lease.
// While held, the lease is extended every third of its TTL, so the TTL only
// bounds how long a crashed holder blocks others.
type RedisLock struct {
	client        *redis.Client
	key           string
	ttl           time.Duration
	renewInterval time.Duration
}

// NewRedisLock creates a lock on key. A non-positive ttl uses DefaultLockTTL.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl, renewInterval: ttl / 3}
}

// TryLock acquires the lock without waiting.
func (l *RedisLock) TryLock(ctx context.Context) (UnlockFunc, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	renewCtx, stopRenew := context.WithCancel(context.WithoutCancel(ctx))
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		l.renew(renewCtx, token)
	}()

	return func(ctx context.Context) error {
		stopRenew()
		<-renewDone

		released, err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", l.key, err)
		}
		if released == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, nil
}

// renew extends the lease until ctx is done or the lease is no longer ours.
// A failed extension is retried on the next tick; the TTL still covers it.
func (l *RedisLock) renew(ctx context.Context, token string) {
	ticker := time.NewTicker(l.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		extended, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
		if err == nil && extended == 0 {
			return
		}
	}
}

// LocalLock is an in-process Locker for single-instance deployments.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates an unlocked LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// TryLock acquires the lock without waiting.
func (l *LocalLock) TryLock(ctx context.Context) (UnlockFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrLockNotAcquired
	}

	var once sync.Once
	return func(context.Context) error {
		released := false
		once.Do(func() {
			l.mu.Unlock()
			released = true
		})
		if !released {
			return ErrLockNotHeld
		}
		return nil
	}, nil
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

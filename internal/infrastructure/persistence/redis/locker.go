package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Default lock timings.
const (
	DefaultLockTTL      = 30 * time.Second
	DefaultLockInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed keyed lock built on SET NX PX. The TTL bounds how
// long a crashed holder can keep a key.
type Locker struct {
	client   *Client
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL sets the lock expiry.
func WithLockTTL(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithRetryInterval sets the acquisition polling interval.
func WithRetryInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithLockLogger sets the logger.
func WithLockLogger(logger *zap.Logger) LockerOption {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocker creates a Locker.
func NewLocker(client *Client, opts ...LockerOption) *Locker {
	l := &Locker{
		client:   client,
		ttl:      DefaultLockTTL,
		interval: DefaultLockInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("redis_lock")
	return l
}

// Lock implements attendance.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.client.lockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, l.client.rdb, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

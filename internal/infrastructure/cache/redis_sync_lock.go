package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockKey = "catalog-sync:lock:product-refresh"
	defaultLockTTL = 6 * time.Hour
	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the lock only if it still carries our token, so a
// lease that expired and was taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still carries our token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	LockKey  string
	LockTTL  time.Duration
}

// RedisSyncLock implements SyncLock as a leased Redis key shared by all
// instances. The holder renews the lease every TTL/3 until it releases, so
// the TTL only bounds how long a crashed holder blocks other runs.
type RedisSyncLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSyncLock connects to Redis and creates a lock on the configured key
func NewRedisSyncLock(cfg RedisConfig, logger *zap.Logger) (*RedisSyncLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSyncLockWithClient(client, cfg.LockKey, cfg.LockTTL, logger), nil
}

// NewRedisSyncLockWithClient creates a lock with an existing Redis client
func NewRedisSyncLockWithClient(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisSyncLock {
	if key == "" {
		key = defaultLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSyncLock{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// TryAcquire sets the lock key with SET NX PX and a random token, then keeps
// the lease alive until the returned release func is called
func (l *RedisSyncLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(renewCtx, token)
	}()

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		stopRenew()
		wg.Wait()

		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("failed to release sync lock, it expires with its TTL",
				zap.String("key", l.key),
				zap.Duration("ttl", l.ttl),
				zap.Error(err),
			)
		}
	}, true, nil
}

func (l *RedisSyncLock) keepAlive(ctx context.Context, token string) {
	renewLease(ctx, renewInterval(l.ttl), func(ctx context.Context) (bool, error) {
		rctx, cancel := context.WithTimeout(ctx, releaseTimeout)
		defer cancel()
		n, err := renewScript.Run(rctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
		return n == 1, err
	}, l.logger.With(zap.String("key", l.key)))
}

// renewInterval leaves two renewal attempts before the lease can lapse
func renewInterval(ttl time.Duration) time.Duration {
	return ttl / 3
}

// renewLease calls renew every interval until ctx is done or the lease is
// reported lost. Failed attempts are retried on the next tick.
func renewLease(ctx context.Context, interval time.Duration, renew func(context.Context) (bool, error), logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		held, err := renew(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("failed to renew sync lock lease", zap.Error(err))
		case !held:
			logger.Error("sync lock lease lost while the run is still in progress")
			return
		}
	}
}

// Close closes the Redis client
func (l *RedisSyncLock) Close() error {
	return l.client.Close()
}

var _ SyncLock = (*RedisSyncLock)(nil)

package cache

import (
	"fmt"

	"github.com/catalogsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SyncLockFactory creates the single-flight lock based on configuration
type SyncLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SyncLockFactoryOption is a functional option for configuring the factory
type SyncLockFactoryOption func(*SyncLockFactory)

// WithLogger sets the logger for the factory and the locks it creates
func WithLogger(logger *zap.Logger) SyncLockFactoryOption {
	return func(f *SyncLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory lock. Default is true.
func WithInMemoryFallback(allow bool) SyncLockFactoryOption {
	return func(f *SyncLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSyncLockFactory creates a new factory
func NewSyncLockFactory(cfg config.RedisConfig, opts ...SyncLockFactoryOption) *SyncLockFactory {
	f := &SyncLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLock creates a Redis-based lock
func (f *SyncLockFactory) CreateRedisLock() (*RedisSyncLock, error) {
	lock, err := NewRedisSyncLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
		LockKey:  f.redisConfig.LockKey,
		LockTTL:  f.redisConfig.LockTTL,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis sync lock: %w", err)
	}
	return lock, nil
}

// CreateLock returns the in-memory lock unless Redis is enabled. With Redis
// enabled but unreachable it falls back to in-memory when allowed.
func (f *SyncLockFactory) CreateLock() (SyncLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory sync lock")
		return NewInMemorySyncLock(), nil
	}

	lock, err := f.CreateRedisLock()
	if err == nil {
		f.logger.Info("using Redis sync lock", zap.String("key", lock.key))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for sync lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory sync lock. "+
		"Concurrent syncs from other instances will not be prevented.",
		zap.Error(err),
	)
	return NewInMemorySyncLock(), nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/pkg/logger"
)

// RedisDB wraps a Redis client. Redis carries the daily quota counters,
// the semantic-score cache, and the task queue broker.
type RedisDB struct {
	Client *redis.Client
}

// NewRedisClient builds a Redis client without checking connectivity.
// Callers that can run degraded connect lazily and fail per call until
// the server comes back.
func NewRedisClient(cfg config.RedisConfig) *RedisDB {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        100,
		MinIdleConns:    10,
		PoolTimeout:     4 * time.Second,
	})

	return &RedisDB{Client: client}
}

// NewRedis creates a new Redis client and verifies the connection
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisDB, error) {
	db := NewRedisClient(cfg)

	if err := db.Client.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", cfg.Addr()),
		zap.Int("db", cfg.DB),
	)

	return db, nil
}

// Close closes the Redis connection
func (db *RedisDB) Close() error {
	if db.Client != nil {
		return db.Client.Close()
	}
	return nil
}

// Get gets a value by key
func (db *RedisDB) Get(ctx context.Context, key string) (string, error) {
	return db.Client.Get(ctx, key).Result()
}

// GetInt64 gets a counter value by key. A missing key reads as zero.
func (db *RedisDB) GetInt64(ctx context.Context, key string) (int64, error) {
	n, err := db.Client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Set sets a value with optional expiration
func (db *RedisDB) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return db.Client.Set(ctx, key, value, expiration).Err()
}

// SetNX sets a value only if it doesn't exist
func (db *RedisDB) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return db.Client.SetNX(ctx, key, value, expiration).Result()
}

// Del deletes one or more keys
func (db *RedisDB) Del(ctx context.Context, keys ...string) error {
	return db.Client.Del(ctx, keys...).Err()
}

// Exists checks if keys exist
func (db *RedisDB) Exists(ctx context.Context, keys ...string) (int64, error) {
	return db.Client.Exists(ctx, keys...).Result()
}

// Incr increments a key
func (db *RedisDB) Incr(ctx context.Context, key string) (int64, error) {
	return db.Client.Incr(ctx, key).Result()
}

// IncrBy increments a key by a value
func (db *RedisDB) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	return db.Client.IncrBy(ctx, key, value).Result()
}

// Expire sets expiration on a key
func (db *RedisDB) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return db.Client.Expire(ctx, key, expiration).Err()
}

// TTL gets the remaining time to live of a key
func (db *RedisDB) TTL(ctx context.Context, key string) (time.Duration, error) {
	return db.Client.TTL(ctx, key).Result()
}

// Pipeline returns a pipeline for batch operations
func (db *RedisDB) Pipeline() redis.Pipeliner {
	return db.Client.Pipeline()
}

// IsNil reports whether err is the missing-key sentinel
func IsNil(err error) bool {
	return err == redis.Nil
}

// Cache implements a simple cache with TTL
type Cache struct {
	redis *RedisDB
	ttl   time.Duration
}

// NewCache creates a new cache
func NewCache(redis *RedisDB, ttl time.Duration) *Cache {
	return &Cache{
		redis: redis,
		ttl:   ttl,
	}
}

// Get gets a cached value
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.redis.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return val, true
}

// Set sets a cached value
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.redis.Set(ctx, key, value, c.ttl)
}

// Delete deletes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, key)
}

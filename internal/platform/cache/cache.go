// Package cache wraps the Redis client shared by the search result cache, the
// rate limiter and the admin purge command.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"inkwell/internal/platform/config"
)

const (
	pingTimeout      = 5 * time.Second
	healthTimeout    = 3 * time.Second
	defaultScanBatch = 500
)

// Config holds Redis connection settings.
type Config struct {
	Address      string
	Password     string // #nosec G117
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// ConfigFrom builds a cache configuration from application settings.
func ConfigFrom(cfg config.RedisConfig) Config {
	return Config{
		Address:      cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Address,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

// Cache is a thin Redis client. Values are opaque bytes; encoding belongs to
// the caller.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects and pings Redis.
func New(cfg Config, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Address, err)
	}

	logger.Info("redis connected", "address", cfg.Address, "db", cfg.DB, "pool_size", cfg.PoolSize)
	return &Cache{client: client, logger: logger}, nil
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	c.logger.Info("redis connection closed")
	return nil
}

// HealthCheck pings Redis.
func (c *Cache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// GetBytes returns the stored value or ErrCacheMiss.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		c.logFailure("get", key, err)
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// SetBytes stores value under key for ttl.
func (c *Cache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logFailure("set", key, err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetInt64 returns the integer stored at key. A missing key reads as zero.
func (c *Cache) GetInt64(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		c.logFailure("get", key, err)
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// Increment adds one to the integer stored at key and returns the new value.
func (c *Cache) Increment(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.logFailure("incr", key, err)
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

// DeleteByPattern removes every key matching pattern, walking the keyspace
// with SCAN and unlinking in batches of batchSize.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string, batchSize int64) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultScanBatch
	}
	var deleted int64
	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Unlink(ctx, batch...).Result()
		deleted += n
		batch = batch[:0]
		return err
	}

	iter := c.client.Scan(ctx, 0, pattern, batchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= batchSize {
			if err := flush(); err != nil {
				c.logFailure("unlink", pattern, err)
				return deleted, fmt.Errorf("redis unlink %s: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		c.logFailure("scan", pattern, err)
		return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		c.logFailure("unlink", pattern, err)
		return deleted, fmt.Errorf("redis unlink %s: %w", pattern, err)
	}
	return deleted, nil
}

// fixedWindowScript bumps a counter, starting its window on the first hit,
// and returns the count together with the window's remaining milliseconds.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// IncrementWindow counts a hit in the fixed window stored at key. It returns
// the hits so far and how long until the window resets.
func (c *Cache) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, fmt.Errorf("window must be positive")
	}
	res, err := fixedWindowScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		c.logFailure("increment", key, err)
		return 0, 0, fmt.Errorf("redis increment %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("redis increment %s: unexpected reply %v", key, res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// logFailure keeps cancelled requests out of the error log.
func (c *Cache) logFailure(op, key string, err error) {
	if isContextDoneError(err) {
		c.logger.Debug("redis call aborted", "op", op, "key", key, "error", err)
		return
	}
	c.logger.Warn("redis call failed", "op", op, "key", key, "error", err)
}

func isContextDoneError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial ping.
	defaultConnectTimeout = 5 * time.Second

	// defaultDialTimeout bounds each connection attempt.
	defaultDialTimeout = 3 * time.Second
)

// Client wraps go-redis with Greenhouse Core-specific functionality.
//
// The cache is the cross-process source of truth for current state: the pump
// state snapshot, the schedule collection, the environment snapshot, and
// bounded recent-history lists. SQLite remains the durable record; the cache
// exists so other processes can read without touching the database.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Connect establishes a connection to the Redis server and verifies it
// with a ping.
//
// Parameters:
//   - cfg: Cache configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial ping fails
func Connect(cfg config.CacheConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
	}, nil
}

// key applies the configured prefix to a cache key.
func (c *Client) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a string value.
//
// Returns:
//   - string: The cached value
//   - error: ErrMiss if the key does not exist
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("cache get %q: %w", key, err)
	}
	return val, nil
}

// Set stores a string value with an optional TTL (0 means no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// PushRecent prepends a value to a bounded recent-history list.
//
// The list is trimmed to max entries after the push, so readers always see
// the max most recent values, newest first.
func (c *Client) PushRecent(ctx context.Context, key, value string, max int64) error {
	k := c.key(key)
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, k, value)
	pipe.LTrim(ctx, k, 0, max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache push %q: %w", key, err)
	}
	return nil
}

// Recent returns up to limit entries from a recent-history list, newest first.
func (c *Client) Recent(ctx context.Context, key string, limit int64) ([]string, error) {
	vals, err := c.rdb.LRange(ctx, c.key(key), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache range %q: %w", key, err)
	}
	return vals, nil
}

// HealthCheck verifies the Redis connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

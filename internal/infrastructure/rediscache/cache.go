package rediscache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultKeyPrefix = "device:status:"
)

// StatusCache is a device.StatusCache backed by Redis.
//
// Each device's entry is one JSON string value written with SET ... EX, so
// status and transition time change together and expire together.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type StatusCache struct {
	rdb    *redis.Client
	prefix string

	closed bool
	mu     sync.RWMutex
}

var _ device.StatusCache = (*StatusCache)(nil)

// Connect creates the client and verifies the server with PING.
// It returns ErrDisabled when Redis is switched off in config.
func Connect(cfg config.RedisConfig) (*StatusCache, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return New(rdb, cfg.KeyPrefix), nil
}

// New wraps an existing client. An empty prefix selects "device:status:".
func New(rdb *redis.Client, prefix string) *StatusCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &StatusCache{rdb: rdb, prefix: prefix}
}

// Key returns the Redis key holding a device's status.
func (c *StatusCache) Key(deviceID string) string {
	return c.prefix + deviceID
}

// Set stores the entry with the given TTL. A non-positive ttl keeps the key
// until it is overwritten or deleted.
func (c *StatusCache) Set(ctx context.Context, deviceID string, entry device.StatusEntry, ttl time.Duration) error {
	if c.isClosed() {
		return ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.Key(deviceID), entry, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrCommandFailed, deviceID, err)
	}
	return nil
}

// Get returns the cached entry. A missing or expired key is a miss, not an error.
func (c *StatusCache) Get(ctx context.Context, deviceID string) (device.StatusEntry, bool, error) {
	if c.isClosed() {
		return device.StatusEntry{}, false, ErrClosed
	}

	data, err := c.rdb.Get(ctx, c.Key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return device.StatusEntry{}, false, nil
	}
	if err != nil {
		return device.StatusEntry{}, false, fmt.Errorf("%w: get %s: %w", ErrCommandFailed, deviceID, err)
	}

	var entry device.StatusEntry
	if err := entry.UnmarshalBinary(data); err != nil {
		return device.StatusEntry{}, false, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, deviceID, err)
	}
	return entry, true, nil
}

// Delete removes a device's entry. Deleting a missing key is not an error.
func (c *StatusCache) Delete(ctx context.Context, deviceID string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.rdb.Del(ctx, c.Key(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %w", ErrCommandFailed, deviceID, err)
	}
	return nil
}

// TTL returns the remaining lifetime of a device's entry, or a negative
// duration when the key is missing or has no expiry.
func (c *StatusCache) TTL(ctx context.Context, deviceID string) (time.Duration, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	d, err := c.rdb.TTL(ctx, c.Key(deviceID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl %s: %w", ErrCommandFailed, deviceID, err)
	}
	return d, nil
}

// HealthCheck pings the server.
func (c *StatusCache) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool. Safe to call more than once.
func (c *StatusCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rdb.Close()
}

func (c *StatusCache) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

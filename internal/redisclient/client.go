package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseLockScript deletes the lock only while it still holds the caller's token
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// Ping is used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// AcquireLock takes a distributed lock. The returned token must be passed to
// ReleaseLock; ok is false when another holder owns the lock.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return token, ok, nil
}

// ReleaseLock releases a lock held with token. A lock that expired and was
// taken by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, name, token string) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

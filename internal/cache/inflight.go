package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// inflightPrefix is the Redis key prefix for per-user humanize locks.
const inflightPrefix = "inflight:humanize:"

// releaseScript deletes the lock only if it still holds the caller's token,
// so an expired lock that was re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// AcquireInflight takes the humanize lock for userID.
// acquired is false when another request already holds it.
func (c *Cache) AcquireInflight(ctx context.Context, userID string, ttl time.Duration) (token string, acquired bool, err error) {
	token, err = newLockToken()
	if err != nil {
		return "", false, err
	}

	ok, err := c.client.SetNX(ctx, inflightPrefix+userID, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire in-flight lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseInflight drops the humanize lock for userID if token still owns it.
func (c *Cache) ReleaseInflight(ctx context.Context, userID, token string) error {
	err := releaseScript.Run(ctx, c.client, []string{inflightPrefix + userID}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release in-flight lock: %w", err)
	}
	return nil
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

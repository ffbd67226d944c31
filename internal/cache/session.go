package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokedTokenPrefix is the Redis key prefix for signed-out identity tokens.
const revokedTokenPrefix = "auth:revoked:"

// RevokeToken marks a token as signed out until it would have expired anyway.
// tokenHash must be a digest of the token, never the token itself.
func (c *Cache) RevokeToken(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedTokenPrefix+tokenHash, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a token was signed out.
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error) {
	err := c.client.Get(ctx, revokedTokenPrefix+tokenHash).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return true, nil
}

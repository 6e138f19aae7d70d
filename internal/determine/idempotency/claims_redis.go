package idempotency

import (
	"context"
	"fmt"
	"time"

	"licenseiq/internal/platform/redis"
	"licenseiq/pkg/platform/sentinel"
)

// RedisClaims coordinates claims across nodes with SET NX and a TTL. The TTL
// is the abandonment bound: a node that dies mid-evaluation frees its claim
// when the key expires.
type RedisClaims struct {
	client *redis.Client
}

func NewRedisClaims(client *redis.Client) *RedisClaims {
	return &RedisClaims{client: client}
}

func redisClaimKey(tenantID, key string) string {
	return fmt.Sprintf("determine:claim:%s:%s", tenantID, key)
}

func (c *RedisClaims) Acquire(ctx context.Context, tenantID, key string, ttl time.Duration) error {
	acquired, err := c.client.SetNX(ctx, redisClaimKey(tenantID, key), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire claim: %w", err)
	}
	if !acquired {
		return sentinel.ErrClaimHeld
	}
	return nil
}

func (c *RedisClaims) Release(ctx context.Context, tenantID, key string) error {
	if err := c.client.Del(ctx, redisClaimKey(tenantID, key)).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

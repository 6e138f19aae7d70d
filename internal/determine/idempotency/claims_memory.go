// Package idempotency provides claim stores that coalesce concurrent
// evaluations of the same idempotency key.
package idempotency

import (
	"context"
	"sync"
	"time"

	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

// InMemoryClaims tracks claims in process memory with per-claim expiry.
// Expired claims count as abandoned and are silently re-acquirable.
type InMemoryClaims struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewInMemoryClaims() *InMemoryClaims {
	return &InMemoryClaims{claims: make(map[string]time.Time)}
}

func claimKey(tenantID, key string) string {
	return tenantID + "/" + key
}

func (c *InMemoryClaims) Acquire(ctx context.Context, tenantID, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := requestcontext.Now(ctx)
	id := claimKey(tenantID, key)
	if expiry, held := c.claims[id]; held && now.Before(expiry) {
		return sentinel.ErrClaimHeld
	}
	c.claims[id] = now.Add(ttl)
	return nil
}

func (c *InMemoryClaims) Release(ctx context.Context, tenantID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, claimKey(tenantID, key))
	return nil
}

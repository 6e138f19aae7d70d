package determine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"licenseiq/internal/domain"
)

// DecisionStore persists decisions and answers idempotent replays. Records
// live at least as long as the idempotency window; implementations may keep
// them longer for audit reads.
type DecisionStore interface {
	// Save stores the decision under its audit ID and, when the key is
	// non-empty, indexes it by idempotency key for the given window.
	Save(ctx context.Context, decision domain.Decision, idempotencyKey string, window time.Duration) error

	// FindByKey returns the decision recorded for a tenant-scoped
	// idempotency key, or sentinel.ErrNotFound when no live record exists.
	FindByKey(ctx context.Context, tenantID, idempotencyKey string) (*domain.Decision, error)

	// Get returns a stored decision by audit ID.
	Get(ctx context.Context, tenantID string, auditID uuid.UUID) (*domain.Decision, error)
}

// ClaimStore coalesces concurrent evaluations of the same idempotency key.
// A claim held past its TTL counts as abandoned and may be re-acquired.
type ClaimStore interface {
	// Acquire attempts to take the claim. It returns sentinel.ErrClaimHeld
	// when another evaluation already holds it.
	Acquire(ctx context.Context, tenantID, key string, ttl time.Duration) error

	// Release frees the claim early once the decision is stored.
	Release(ctx context.Context, tenantID, key string) error
}

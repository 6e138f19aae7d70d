// Package history keeps the orders a tenant has evaluated, so simulation
// and impact analysis can replay them against candidate rules.
package history

import (
	"context"
	"time"

	"licenseiq/internal/domain"
)

// Record is one evaluated order with the outcome it received at the time.
type Record struct {
	Order       domain.Order
	Outcome     domain.Outcome
	EvaluatedAt time.Time
}

// Store records evaluated orders and serves them back by window.
type Store interface {
	// Record appends an evaluated order. Appends are idempotent per audit:
	// the same order may legitimately appear more than once when it was
	// re-evaluated, and each evaluation counts in impact analysis.
	Record(ctx context.Context, tenantID string, record Record) error

	// ListSince returns records evaluated at or after since, oldest first.
	ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error)
}

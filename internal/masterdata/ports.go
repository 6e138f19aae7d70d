// Package masterdata defines the engine's read-only view of Party and
// Product records. The store of record is external; the engine resolves
// references against a snapshot and never writes back.
package masterdata

import (
	"context"

	"licenseiq/internal/domain"
)

// PartyResolver resolves a party reference. Implementations must respect the
// context deadline: the engine degrades a line to REVIEW when a lookup times
// out rather than hanging the order.
type PartyResolver interface {
	ResolveParty(ctx context.Context, partyID string) (*domain.Party, error)
}

// ProductResolver resolves a material reference.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, materialID string) (*domain.Product, error)
}

// Resolver combines both lookups; the usual implementation is one snapshot
// store serving both record types.
type Resolver interface {
	PartyResolver
	ProductResolver
}

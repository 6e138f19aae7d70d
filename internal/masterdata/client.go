package masterdata

import (
	"context"
	"time"

	"licenseiq/internal/domain"
)

// SlowResolver wraps a Resolver with an artificial delay. Tests use it to
// exercise the DEPENDENCY_TIMEOUT degradation path without a real slow
// backend.
type SlowResolver struct {
	Inner   Resolver
	Latency time.Duration
}

func (r SlowResolver) ResolveParty(ctx context.Context, partyID string) (*domain.Party, error) {
	if err := wait(ctx, r.Latency); err != nil {
		return nil, err
	}
	return r.Inner.ResolveParty(ctx, partyID)
}

func (r SlowResolver) ResolveProduct(ctx context.Context, materialID string) (*domain.Product, error) {
	if err := wait(ctx, r.Latency); err != nil {
		return nil, err
	}
	return r.Inner.ResolveProduct(ctx, materialID)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

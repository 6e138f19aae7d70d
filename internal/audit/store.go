package audit

import "context"

// Store is the durable, append-only record of emitted events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTenant(ctx context.Context, tenantID string) ([]Event, error)
}

// Sink hands events to the external audit/webhook emitter. Delivery beyond
// the initial acknowledged handoff is the emitter's responsibility.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

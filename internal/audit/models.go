package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the webhook event types the engine emits.
type EventKind string

const (
	// EventDeterminationCreated fires once per recorded Decision.
	EventDeterminationCreated EventKind = "determination.created"

	// EventStatusChanged fires on every rule lifecycle transition.
	EventStatusChanged EventKind = "status.changed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	Timestamp time.Time
	TenantID  string

	// Subject is the entity the event is about: an order_id for
	// determinations, a rule_id for lifecycle transitions.
	Subject string

	// AuditID is the Decision's audit identifier for determination events.
	AuditID string

	Decision string
	Reason   string

	// RequestID correlates the event with HTTP request logs.
	RequestID string

	// ActorID is who performed the action, when different from the system.
	ActorID string
}

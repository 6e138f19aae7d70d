package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"licenseiq/pkg/platform/sentinel"
)

// Publisher captures structured audit events. It is append-only: the store
// write is the engine's durability guarantee, the sink handoff is best-effort
// at-least-once (the emitter owns downstream retries).
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSink attaches an external emitter handoff (e.g. the Kafka sink).
func WithSink(sink Sink) Option {
	return func(p *Publisher) { p.sink = sink }
}

// WithLogger attaches a logger for sink delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithAsyncBuffer makes Emit enqueue instead of writing inline. Close drains
// the buffer before returning; emitting into a full buffer fails with
// sentinel.ErrUnavailable.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) { p.inbox = make(chan Event, size) }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records one event. Timestamps and IDs are assigned here so callers
// only describe what happened.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return nil
		default:
			// A full buffer means the worker cannot keep up; failing fast
			// lets the caller log the loss instead of stalling evaluations.
			return fmt.Errorf("audit buffer full: %w", sentinel.ErrUnavailable)
		}
	}
	return p.process(ctx, event)
}

// List returns the events recorded for a tenant.
func (p *Publisher) List(ctx context.Context, tenantID string) ([]Event, error) {
	return p.store.ListByTenant(ctx, tenantID)
}

// Close drains the async buffer, if any, and stops the worker.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.process(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit event processing failed",
				"kind", event.Kind, "subject", event.Subject, "error", err)
		}
	}
}

func (p *Publisher) process(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Deliver(ctx, event); err != nil && p.logger != nil {
			// The durable record exists; delivery is the emitter's problem
			// from here. Log for the incident trail and move on.
			p.logger.WarnContext(ctx, "audit sink delivery failed",
				"kind", event.Kind, "subject", event.Subject, "error", err)
		}
	}
	return nil
}

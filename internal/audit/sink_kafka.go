package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"licenseiq/internal/platform/kafka"
)

// KafkaSink hands events to the external emitter via the audit topic.
// Records are keyed by subject so all events for one order or rule land on
// the same partition in order.
type KafkaSink struct {
	producer *kafka.Producer
}

func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

// wirePayload is the JSON published to the topic. Field names are part of the
// webhook contract.
type wirePayload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
	TenantID  string `json:"tenant_id"`
	Subject   string `json:"subject"`
	AuditID   string `json:"audit_id,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(wirePayload{
		ID:        event.ID.String(),
		Kind:      string(event.Kind),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		TenantID:  event.TenantID,
		Subject:   event.Subject,
		AuditID:   event.AuditID,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	return s.producer.Publish(ctx, event.Subject, payload)
}

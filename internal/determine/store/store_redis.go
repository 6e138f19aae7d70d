package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"licenseiq/internal/domain"
	"licenseiq/internal/platform/redis"
	"licenseiq/pkg/platform/sentinel"
)

// RedisDecisionStore stores decisions as JSON values with Redis TTLs, which
// gives the idempotency window and record expiry for free across nodes.
type RedisDecisionStore struct {
	client *redis.Client

	// retention bounds how long a decision stays readable by audit ID;
	// idempotency keys expire on the caller-provided window instead.
	retention time.Duration
}

func NewRedisDecisionStore(client *redis.Client, retention time.Duration) *RedisDecisionStore {
	return &RedisDecisionStore{client: client, retention: retention}
}

func decisionKey(tenantID string, auditID uuid.UUID) string {
	return fmt.Sprintf("decision:%s:%s", tenantID, auditID)
}

func idemKey(tenantID, key string) string {
	return fmt.Sprintf("decision:idem:%s:%s", tenantID, key)
}

func (s *RedisDecisionStore) Save(ctx context.Context, decision domain.Decision, idempotencyKey string, window time.Duration) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	if err := s.client.Set(ctx, decisionKey(decision.TenantID, decision.AuditID), payload, s.retention).Err(); err != nil {
		return fmt.Errorf("store decision: %w", err)
	}
	if idempotencyKey == "" {
		return nil
	}
	if err := s.client.Set(ctx, idemKey(decision.TenantID, idempotencyKey), payload, window).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func (s *RedisDecisionStore) FindByKey(ctx context.Context, tenantID, idempotencyKey string) (*domain.Decision, error) {
	return s.fetch(ctx, idemKey(tenantID, idempotencyKey))
}

func (s *RedisDecisionStore) Get(ctx context.Context, tenantID string, auditID uuid.UUID) (*domain.Decision, error) {
	return s.fetch(ctx, decisionKey(tenantID, auditID))
}

func (s *RedisDecisionStore) fetch(ctx context.Context, key string) (*domain.Decision, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch decision: %w", err)
	}

	var decision domain.Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	return &decision, nil
}

// Package store provides decision persistence backends for the
// determination service.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"licenseiq/internal/domain"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

type keyedDecision struct {
	decision  domain.Decision
	expiresAt time.Time
}

// InMemoryDecisionStore keeps decisions in process memory. Suitable for
// tests and single-node deployments without Redis or Postgres configured.
type InMemoryDecisionStore struct {
	mu      sync.RWMutex
	byAudit map[string]map[uuid.UUID]domain.Decision
	byIdem  map[string]map[string]keyedDecision
}

func NewInMemoryDecisionStore() *InMemoryDecisionStore {
	return &InMemoryDecisionStore{
		byAudit: make(map[string]map[uuid.UUID]domain.Decision),
		byIdem:  make(map[string]map[string]keyedDecision),
	}
}

func (s *InMemoryDecisionStore) Save(ctx context.Context, decision domain.Decision, idempotencyKey string, window time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	audits, ok := s.byAudit[decision.TenantID]
	if !ok {
		audits = make(map[uuid.UUID]domain.Decision)
		s.byAudit[decision.TenantID] = audits
	}
	audits[decision.AuditID] = decision

	if idempotencyKey == "" {
		return nil
	}
	keys, ok := s.byIdem[decision.TenantID]
	if !ok {
		keys = make(map[string]keyedDecision)
		s.byIdem[decision.TenantID] = keys
	}
	keys[idempotencyKey] = keyedDecision{
		decision:  decision,
		expiresAt: requestcontext.Now(ctx).Add(window),
	}
	return nil
}

func (s *InMemoryDecisionStore) FindByKey(ctx context.Context, tenantID, idempotencyKey string) (*domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byIdem[tenantID][idempotencyKey]
	if !ok || requestcontext.Now(ctx).After(record.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	decision := record.decision
	return &decision, nil
}

func (s *InMemoryDecisionStore) Get(ctx context.Context, tenantID string, auditID uuid.UUID) (*domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	decision, ok := s.byAudit[tenantID][auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &decision, nil
}

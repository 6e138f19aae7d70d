package store

import (
	"context"
	"sort"
	"sync"

	"licenseiq/internal/rules"
	"licenseiq/pkg/platform/sentinel"
)

// InMemoryStore keeps rule versions per tenant. Suitable for tests and
// single-node dev; production deployments use the Postgres store.
type InMemoryStore struct {
	mu sync.RWMutex
	// tenant -> rule_id -> versions (unsorted; sorted on read)
	byTenant map[string]map[string][]rules.Rule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTenant: make(map[string]map[string][]rules.Rule)}
}

func (s *InMemoryStore) Put(_ context.Context, rule rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.byTenant[rule.TenantID]
	if !ok {
		tenant = make(map[string][]rules.Rule)
		s.byTenant[rule.TenantID] = tenant
	}
	for _, existing := range tenant[rule.RuleID] {
		if existing.Version == rule.Version {
			return sentinel.ErrConflict
		}
	}
	tenant[rule.RuleID] = append(tenant[rule.RuleID], rule)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, tenantID, ruleID string, version int) (rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.byTenant[tenantID][ruleID] {
		if rule.Version == version {
			return rule, nil
		}
	}
	return rules.Rule{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListVersions(_ context.Context, tenantID, ruleID string) ([]rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.byTenant[tenantID][ruleID]
	if len(versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	out := append([]rules.Rule{}, versions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *InMemoryStore) ListLive(_ context.Context, tenantID string) ([]rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []rules.Rule
	for _, versions := range s.byTenant[tenantID] {
		for _, rule := range versions {
			if rule.Live() {
				out = append(out, rule)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RuleID != out[j].RuleID {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *InMemoryStore) UpdateState(_ context.Context, tenantID, ruleID string, version int, state rules.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.byTenant[tenantID][ruleID]
	for i := range versions {
		if versions[i].Version == version {
			versions[i].State = state
			return nil
		}
	}
	return sentinel.ErrNotFound
}

package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps order history in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	byTenant map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTenant: make(map[string][]Record)}
}

func (s *InMemoryStore) Record(ctx context.Context, tenantID string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTenant[tenantID] = append(s.byTenant[tenantID], record)
	return nil
}

func (s *InMemoryStore) ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, record := range s.byTenant[tenantID] {
		if !record.EvaluatedAt.Before(since) {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EvaluatedAt.Before(out[j].EvaluatedAt) })
	return out, nil
}

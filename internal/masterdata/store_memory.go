package masterdata

import (
	"context"
	"sync"

	"licenseiq/internal/domain"
	"licenseiq/pkg/platform/sentinel"
)

// InMemoryStore holds a master-data snapshot for evaluation. Reads are
// lock-free after loading aside from the RWMutex read lock; the engine never
// mutates records it reads.
type InMemoryStore struct {
	mu       sync.RWMutex
	parties  map[string]domain.Party
	products map[string]domain.Product
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		parties:  make(map[string]domain.Party),
		products: make(map[string]domain.Product),
	}
}

// PutParty loads or replaces a party record in the snapshot.
func (s *InMemoryStore) PutParty(party domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[party.PartyID] = party
}

// PutProduct loads or replaces a product record in the snapshot.
func (s *InMemoryStore) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.MaterialID] = product
}

func (s *InMemoryStore) ResolveParty(ctx context.Context, partyID string) (*domain.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if party, ok := s.parties[partyID]; ok {
		return &party, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ResolveProduct(ctx context.Context, materialID string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if product, ok := s.products[materialID]; ok {
		return &product, nil
	}
	return nil, sentinel.ErrNotFound
}

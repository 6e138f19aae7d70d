package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
	"licenseiq/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func makeRule(ruleID string, version int, state rules.LifecycleState) rules.Rule {
	return rules.Rule{
		RuleID:   ruleID,
		Version:  version,
		TenantID: "acme",
		State:    state,
		Action:   domain.OutcomeBlock,
		Predicate: &rules.Expr{
			Op: rules.OpPrefix, Field: "product.eccn", Value: "3A",
		},
		ReasonCode: "ECCN_CONTROLLED",
	}
}

func (s *InMemoryStoreSuite) TestPutAndGet() {
	rule := makeRule("R1", 1, rules.StateDraft)
	require.NoError(s.T(), s.store.Put(context.Background(), rule))

	found, err := s.store.Get(context.Background(), "acme", "R1", 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), rule, found)
}

func (s *InMemoryStoreSuite) TestPutDuplicateVersionConflicts() {
	rule := makeRule("R1", 1, rules.StateDraft)
	require.NoError(s.T(), s.store.Put(context.Background(), rule))

	err := s.store.Put(context.Background(), rule)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), "acme", "R9", 1)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListVersionsSorted() {
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 3, rules.StateProduction)))
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 1, rules.StateRetired)))
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 2, rules.StateRejected)))

	versions, err := s.store.ListVersions(context.Background(), "acme", "R1")
	require.NoError(s.T(), err)
	require.Len(s.T(), versions, 3)
	assert.Equal(s.T(), 1, versions[0].Version)
	assert.Equal(s.T(), 3, versions[2].Version)
}

func (s *InMemoryStoreSuite) TestListLiveFiltersStates() {
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 1, rules.StateRetired)))
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 2, rules.StateProduction)))
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R2", 1, rules.StateShadow)))
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R3", 1, rules.StateDraft)))

	live, err := s.store.ListLive(context.Background(), "acme")
	require.NoError(s.T(), err)
	require.Len(s.T(), live, 2)
	assert.Equal(s.T(), "R1", live[0].RuleID)
	assert.Equal(s.T(), 2, live[0].Version)
	assert.Equal(s.T(), "R2", live[1].RuleID)
}

func (s *InMemoryStoreSuite) TestListLiveIsolatesTenants() {
	rule := makeRule("R1", 1, rules.StateProduction)
	require.NoError(s.T(), s.store.Put(context.Background(), rule))

	live, err := s.store.ListLive(context.Background(), "other-tenant")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), live)
}

func (s *InMemoryStoreSuite) TestUpdateState() {
	require.NoError(s.T(), s.store.Put(context.Background(), makeRule("R1", 1, rules.StateDraft)))

	err := s.store.UpdateState(context.Background(), "acme", "R1", 1, rules.StateShadow)
	require.NoError(s.T(), err)

	found, err := s.store.Get(context.Background(), "acme", "R1", 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), rules.StateShadow, found.State)

	err = s.store.UpdateState(context.Background(), "acme", "R1", 9, rules.StateShadow)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
	"licenseiq/internal/rules/store"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/testutil/containers"
)

const ruleVersionsDDL = `
CREATE TABLE IF NOT EXISTS rule_versions (
    tenant_id        TEXT             NOT NULL,
    rule_id          TEXT             NOT NULL,
    version          INT              NOT NULL,
    state            TEXT             NOT NULL,
    action           TEXT             NOT NULL,
    reason_code      TEXT             NOT NULL,
    citation         TEXT             NOT NULL,
    traffic_fraction DOUBLE PRECISION NOT NULL,
    de_minimis_pct   DOUBLE PRECISION,
    predicate        JSONB            NOT NULL,
    created_at       TIMESTAMPTZ      NOT NULL,
    PRIMARY KEY (tenant_id, rule_id, version)
)`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	_, err := s.postgres.Pool.Exec(context.Background(), ruleVersionsDDL)
	s.Require().NoError(err)

	s.store = store.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.Pool.Exec(context.Background(), "TRUNCATE rule_versions")
	s.Require().NoError(err)
}

func storedRule(tenantID, ruleID string, version int, state rules.LifecycleState) rules.Rule {
	return rules.Rule{
		RuleID:          ruleID,
		Version:         version,
		TenantID:        tenantID,
		State:           state,
		Predicate:       &rules.Expr{Op: rules.OpPrefix, Field: "product.eccn", Value: "3A"},
		Action:          domain.OutcomeBlock,
		ReasonCode:      "RULE_MATCH",
		Citation:        "EAR 742.4(a)",
		TrafficFraction: 1.0,
		CreatedAt:       time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func (s *PostgresStoreSuite) TestPutAndGet() {
	ctx := context.Background()
	threshold := 10.0
	rule := storedRule("acme", "rule-1", 1, rules.StateDraft)
	rule.DeMinimisThresholdPct = &threshold

	s.Require().NoError(s.store.Put(ctx, rule))

	got, err := s.store.Get(ctx, "acme", "rule-1", 1)
	s.Require().NoError(err)
	s.Equal(rule.RuleID, got.RuleID)
	s.Equal(rule.State, got.State)
	s.Equal(rule.Action, got.Action)
	s.Equal(rule.Citation, got.Citation)
	s.Require().NotNil(got.DeMinimisThresholdPct)
	s.Equal(threshold, *got.DeMinimisThresholdPct)
	s.Require().NotNil(got.Predicate)
	s.Equal(rules.OpPrefix, got.Predicate.Op)
	s.Equal("product.eccn", got.Predicate.Field)
	s.True(rule.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestPutDuplicateVersionConflicts() {
	ctx := context.Background()
	rule := storedRule("acme", "rule-1", 1, rules.StateDraft)

	s.Require().NoError(s.store.Put(ctx, rule))
	s.ErrorIs(s.store.Put(ctx, rule), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "acme", "nope", 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListVersionsOrdered() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-1", 2, rules.StateDraft)))
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-1", 1, rules.StateRetired)))

	versions, err := s.store.ListVersions(ctx, "acme", "rule-1")
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(1, versions[0].Version)
	s.Equal(2, versions[1].Version)

	_, err = s.store.ListVersions(ctx, "acme", "other")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListLiveFiltersStateAndTenant() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-1", 1, rules.StateProduction)))
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-2", 1, rules.StateShadow)))
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-3", 1, rules.StateCanary)))
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-4", 1, rules.StateDraft)))
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-5", 1, rules.StateRetired)))
	s.Require().NoError(s.store.Put(ctx, storedRule("globex", "rule-1", 1, rules.StateProduction)))

	live, err := s.store.ListLive(ctx, "acme")
	s.Require().NoError(err)

	ids := make([]string, 0, len(live))
	for _, rule := range live {
		ids = append(ids, rule.RuleID)
	}
	s.ElementsMatch([]string{"rule-1", "rule-2", "rule-3"}, ids)
}

func (s *PostgresStoreSuite) TestUpdateState() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, storedRule("acme", "rule-1", 1, rules.StateDraft)))

	s.Require().NoError(s.store.UpdateState(ctx, "acme", "rule-1", 1, rules.StateShadow))

	got, err := s.store.Get(ctx, "acme", "rule-1", 1)
	s.Require().NoError(err)
	s.Equal(rules.StateShadow, got.State)

	s.ErrorIs(s.store.UpdateState(ctx, "acme", "rule-1", 9, rules.StateShadow), sentinel.ErrNotFound)
}

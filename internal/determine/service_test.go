package determine_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseiq/internal/audit"
	"licenseiq/internal/controls"
	"licenseiq/internal/determine"
	"licenseiq/internal/determine/idempotency"
	"licenseiq/internal/determine/store"
	"licenseiq/internal/domain"
	"licenseiq/internal/history"
	"licenseiq/internal/masterdata"
	"licenseiq/internal/platform/config"
	"licenseiq/internal/rules"
	domainerrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/requestcontext"
)

type staticRules struct {
	rules []rules.Rule
}

func (s staticRules) ListActive(_ context.Context, _ string, _ time.Time) ([]rules.Rule, error) {
	return s.rules, nil
}

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Emit(_ context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureAudit) all() []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Event(nil), c.events...)
}

type fixture struct {
	service *determine.Service
	master  *masterdata.InMemoryStore
	claims  *idempotency.InMemoryClaims
	audit   *captureAudit
	history *history.InMemoryStore
	cfg     config.EngineConfig
}

func newFixture(t *testing.T, ruleSet []rules.Rule, opts ...func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		master: masterdata.NewInMemoryStore(),
		claims: idempotency.NewInMemoryClaims(),
		audit:  &captureAudit{},
		cfg: config.EngineConfig{
			ResolveTimeout:      100 * time.Millisecond,
			DeMinimisDefaultPct: 25,
			IdempotencyWindow:   24 * time.Hour,
			ClaimTTL:            time.Second,
			ClaimWait:           200 * time.Millisecond,
		},
	}
	f.master.PutParty(domain.Party{
		PartyID:         "party-1",
		Country:         "DE",
		Type:            domain.PartyEndUser,
		ScreeningStatus: domain.ScreeningCleared,
	})
	f.master.PutProduct(domain.Product{
		MaterialID:    "mat-1",
		ECCN:          "3A001",
		OriginCountry: "DE",
	})

	var resolver masterdata.Resolver = f.master
	for _, opt := range opts {
		opt(f)
	}
	if f.cfg.ResolveTimeout < 10*time.Millisecond {
		resolver = masterdata.SlowResolver{Inner: f.master, Latency: 50 * time.Millisecond}
	}

	snapshot := controls.NewSnapshot("2025-q2", time.Now().Add(-time.Hour), time.Time{}, map[string][]string{
		"IR": {"US"},
	})
	f.history = history.NewInMemoryStore()
	f.service = determine.NewService(
		resolver,
		staticRules{rules: ruleSet},
		controls.StaticSource{Current: snapshot},
		store.NewInMemoryDecisionStore(),
		f.claims,
		f.audit,
		f.history,
		slog.Default(),
		nil,
		f.cfg,
	)
	return f
}

func tenantCtx() context.Context {
	return requestContext("acme")
}

func requestContext(tenant string) context.Context {
	return requestcontext.WithTenantID(context.Background(), tenant)
}

func blockRuleSet() []rules.Rule {
	return []rules.Rule{{
		RuleID:     "R1",
		Version:    1,
		TenantID:   "acme",
		State:      rules.StateProduction,
		Action:     domain.OutcomeBlock,
		ReasonCode: "ECCN_CONTROLLED",
		Citation:   "EAR 742.4(a)",
		Predicate:  &rules.Expr{Op: rules.OpPrefix, Field: "product.eccn", Value: "3A"},
	}}
}

func sampleOrder() domain.Order {
	return domain.Order{
		OrderID:       "ord-1001",
		BuyerPartyRef: "party-1",
		ShipToCountry: "IR",
		Lines: []domain.LineItem{
			{LineNo: 1, ProductRef: "mat-1", Quantity: 5, UnitValue: 100},
		},
	}
}

func TestEvaluate_CreatesDecisionAndAuditEvent(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	decision, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeBlock, decision.Outcome)
	assert.Equal(t, "acme", decision.TenantID)
	assert.NotEqual(t, decision.AuditID.String(), "00000000-0000-0000-0000-000000000000")
	require.Len(t, decision.Lines, 1)
	assert.Equal(t, []string{"R1"}, decision.Lines[0].MatchedRuleIDs)

	events := f.audit.all()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventDeterminationCreated, events[0].Kind)
	assert.Equal(t, decision.AuditID.String(), events[0].AuditID)
	assert.Equal(t, "ord-1001", events[0].Subject)

	records, err := f.history.ListSince(context.Background(), "acme", time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ord-1001", records[0].Order.OrderID)
	assert.Equal(t, domain.OutcomeBlock, records[0].Outcome)
}

func TestEvaluate_IdempotentReplayReturnsSameDecision(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	first, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	second, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, first.AuditID, second.AuditID)
	assert.Len(t, f.audit.all(), 1, "replay emits no second audit event")
}

func TestEvaluate_DifferentKeysEvaluateIndependently(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	first, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	second, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-2",
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.AuditID, second.AuditID)
	assert.Len(t, f.audit.all(), 2)
}

func TestEvaluate_HeldClaimTimesOutWithConflict(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	// Another node holds the claim and never stores a decision.
	require.NoError(t, f.claims.Acquire(context.Background(), "acme", "key-1", time.Minute))

	_, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeConflict))
}

func TestEvaluate_AbandonedClaimIsReacquired(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	// A claim with an already-elapsed TTL counts as abandoned.
	require.NoError(t, f.claims.Acquire(context.Background(), "acme", "key-1", time.Nanosecond))
	time.Sleep(time.Millisecond)

	decision, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
		Order:          sampleOrder(),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBlock, decision.Outcome)
}

func TestEvaluate_ConcurrentSameKeyCoalesces(t *testing.T) {
	f := newFixture(t, blockRuleSet(), func(f *fixture) {
		f.cfg.ClaimWait = 2 * time.Second
	})

	const callers = 8
	var wg sync.WaitGroup
	decisions := make([]*domain.Decision, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{
				Order:          sampleOrder(),
				IdempotencyKey: "key-1",
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
	}
	for i := 1; i < callers; i++ {
		assert.Equal(t, decisions[0].AuditID, decisions[i].AuditID,
			"every caller observes the same decision")
	}

	events := f.audit.all()
	require.Len(t, events, 1, "exactly one evaluation proceeds per key")
}

func TestEvaluate_MissingProductDegradesLineToReview(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	order := sampleOrder()
	order.Lines = append(order.Lines, domain.LineItem{
		LineNo: 2, ProductRef: "mat-missing", Quantity: 1, UnitValue: 10,
	})

	decision, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{Order: order})
	require.NoError(t, err)

	require.Len(t, decision.Lines, 2)
	assert.Equal(t, domain.OutcomeBlock, decision.Lines[0].Outcome)
	assert.Equal(t, domain.OutcomeReview, decision.Lines[1].Outcome)
	assert.Equal(t, domain.ReasonUnresolvedReference, decision.Lines[1].ReasonCode)
	assert.Equal(t, domain.OutcomeBlock, decision.Outcome, "BLOCK dominates the degraded line")
}

func TestEvaluate_SlowResolverDegradesToTimeout(t *testing.T) {
	f := newFixture(t, nil, func(f *fixture) {
		f.cfg.ResolveTimeout = time.Millisecond
	})

	decision, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{Order: sampleOrder()})
	require.NoError(t, err)

	require.Len(t, decision.Lines, 1)
	assert.Equal(t, domain.OutcomeReview, decision.Lines[0].Outcome)
	assert.Equal(t, domain.ReasonDependencyTimeout, decision.Lines[0].ReasonCode)
}

func TestEvaluate_RejectsInvalidOrder(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{Order: domain.Order{}})
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeValidation))
}

func TestEvaluate_RequiresTenant(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Evaluate(context.Background(), determine.EvaluateRequest{Order: sampleOrder()})
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestGet_ReturnsStoredDecision(t *testing.T) {
	f := newFixture(t, blockRuleSet())

	created, err := f.service.Evaluate(tenantCtx(), determine.EvaluateRequest{Order: sampleOrder()})
	require.NoError(t, err)

	fetched, err := f.service.Get(tenantCtx(), created.AuditID)
	require.NoError(t, err)
	assert.Equal(t, created.AuditID, fetched.AuditID)
	assert.Equal(t, created.Outcome, fetched.Outcome)

	_, err = f.service.Get(requestContext("other-tenant"), created.AuditID)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

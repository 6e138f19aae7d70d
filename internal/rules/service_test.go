package rules_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseiq/internal/audit"
	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
	"licenseiq/internal/rules/store"
	dErrors "licenseiq/pkg/domain-errors"
)

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

func newService(t *testing.T) (*rules.Service, *store.InMemoryStore, *captureAudit) {
	t.Helper()
	st := store.NewInMemoryStore()
	auditor := &captureAudit{}
	svc := rules.NewService(st, auditor, nil, 0.05)
	return svc, st, auditor
}

func draftRule(ruleID string, version int) rules.Rule {
	return rules.Rule{
		RuleID:     ruleID,
		Version:    version,
		TenantID:   "acme",
		State:      rules.StateDraft,
		Action:     domain.OutcomeBlock,
		ReasonCode: "ECCN_CONTROLLED",
		Predicate:  &rules.Expr{Op: rules.OpPrefix, Field: "product.eccn", Value: "3A"},
	}
}

func approvals(ids ...string) []rules.Approval {
	out := make([]rules.Approval, len(ids))
	for i, id := range ids {
		out[i] = rules.Approval{ApproverID: id, At: time.Now()}
	}
	return out
}

func mustTransition(t *testing.T, svc *rules.Service, req rules.TransitionRequest) {
	t.Helper()
	require.NoError(t, svc.Transition(context.Background(), "acme", req))
}

func TestService_SubmitVersioning(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, draftRule("R1", 1)))

	t.Run("version must increase", func(t *testing.T) {
		err := svc.Submit(ctx, draftRule("R1", 1))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("non-draft submission rejected", func(t *testing.T) {
		rule := draftRule("R2", 1)
		rule.State = rules.StateProduction
		err := svc.Submit(ctx, rule)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("next version accepted", func(t *testing.T) {
		require.NoError(t, svc.Submit(ctx, draftRule("R1", 2)))
	})
}

func TestService_FullLifecycle(t *testing.T) {
	svc, _, auditor := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, draftRule("R1", 1)))

	mustTransition(t, svc, rules.TransitionRequest{
		RuleID: "R1", Version: 1, Target: rules.StateShadow,
		Approvals: approvals("alice", "bob"),
	})
	mustTransition(t, svc, rules.TransitionRequest{
		RuleID: "R1", Version: 1, Target: rules.StateCanary,
		Approvals: approvals("alice", "bob"),
	})
	mustTransition(t, svc, rules.TransitionRequest{
		RuleID: "R1", Version: 1, Target: rules.StateProduction,
		Approvals: approvals("alice", "bob"),
		Impact:    &rules.ImpactResult{WindowDays: 120, OrdersReplayed: 900, OutcomeShift: 0.02},
	})

	active, err := svc.ListActive(ctx, "acme", time.Now())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rules.StateProduction, active[0].State)

	// Every transition emitted a status.changed event.
	require.Len(t, auditor.events, 3)
	for _, event := range auditor.events {
		assert.Equal(t, audit.EventStatusChanged, event.Kind)
		assert.Equal(t, "R1", event.Subject)
	}
}

func TestService_ProductionUniqueness(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	// v1 already in production.
	v1 := draftRule("R1", 1)
	v1.State = rules.StateProduction
	require.NoError(t, st.Put(ctx, v1))

	// v2 reaches canary.
	v2 := draftRule("R1", 2)
	v2.State = rules.StateCanary
	v2.TrafficFraction = 0.05
	require.NoError(t, st.Put(ctx, v2))

	err := svc.Transition(ctx, "acme", rules.TransitionRequest{
		RuleID: "R1", Version: 2, Target: rules.StateProduction,
		Approvals: approvals("alice", "bob"),
		Impact:    &rules.ImpactResult{WindowDays: 90, OutcomeShift: 0.0},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRuleConflict))
}

func TestService_RollbackViaRetireAndReactivate(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	v1 := draftRule("R1", 1)
	v1.State = rules.StateRetired
	require.NoError(t, st.Put(ctx, v1))

	v2 := draftRule("R1", 2)
	v2.State = rules.StateProduction
	require.NoError(t, st.Put(ctx, v2))

	// Retire the bad version (single approver), reactivate the prior one.
	mustTransition(t, svc, rules.TransitionRequest{
		RuleID: "R1", Version: 2, Target: rules.StateRetired,
		Approvals: approvals("alice"),
	})
	mustTransition(t, svc, rules.TransitionRequest{
		RuleID: "R1", Version: 1, Target: rules.StateProduction,
		Approvals: approvals("alice", "bob"),
	})

	active, err := svc.ListActive(ctx, "acme", time.Now())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Version)
}

func TestService_ListActiveDetectsConflict(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	// Corrupted repository state: two production versions.
	v1 := draftRule("R1", 1)
	v1.State = rules.StateProduction
	require.NoError(t, st.Put(ctx, v1))
	v2 := draftRule("R1", 2)
	v2.State = rules.StateProduction
	require.NoError(t, st.Put(ctx, v2))

	_, err := svc.ListActive(ctx, "acme", time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRuleConflict))
}

func TestService_TransitionUnknownRule(t *testing.T) {
	svc, _, _ := newService(t)

	err := svc.Transition(context.Background(), "acme", rules.TransitionRequest{
		RuleID: "nope", Version: 1, Target: rules.StateShadow,
		Approvals: approvals("alice", "bob"),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

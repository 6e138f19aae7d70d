// Package rules holds versioned rule definitions, the predicate DSL they are
// written in, and the lifecycle state machine that governs rollout.
package rules

import (
	"fmt"
	"time"

	"licenseiq/internal/domain"
)

// LifecycleState is the rollout stage of one rule version.
type LifecycleState string

const (
	StateDraft      LifecycleState = "draft"
	StateShadow     LifecycleState = "shadow"
	StateCanary     LifecycleState = "canary"
	StateProduction LifecycleState = "production"
	StateRetired    LifecycleState = "retired"
	StateRejected   LifecycleState = "rejected"
)

// MaxTrafficFraction caps canary exposure. A canary serving more than a tenth
// of live traffic is a deployment, not a canary.
const MaxTrafficFraction = 0.10

// Rule is one immutable version of a rule definition. Publishing a change
// means inserting a new version, never editing a deployed one.
type Rule struct {
	RuleID   string
	Version  int
	TenantID string
	State    LifecycleState

	// Predicate is a side-effect-free expression over the combined
	// Order/LineItem/Party/Product fact set.
	Predicate *Expr

	Action     domain.Outcome
	ReasonCode string
	Citation   string

	// TrafficFraction applies in canary state only, in (0, MaxTrafficFraction].
	TrafficFraction float64

	// DeMinimisThresholdPct overrides the tenant default when non-nil.
	DeMinimisThresholdPct *float64

	CreatedAt time.Time
}

// Validate checks the structural invariants of a rule definition.
func (r Rule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}
	if r.Version <= 0 {
		return fmt.Errorf("rule %s: version must be positive", r.RuleID)
	}
	if r.TenantID == "" {
		return fmt.Errorf("rule %s: tenant_id is required", r.RuleID)
	}
	switch r.State {
	case StateDraft, StateShadow, StateCanary, StateProduction, StateRetired, StateRejected:
	default:
		return fmt.Errorf("rule %s: unknown lifecycle state %q", r.RuleID, r.State)
	}
	switch r.Action {
	case domain.OutcomeAllow, domain.OutcomeReview, domain.OutcomeBlock:
	default:
		return fmt.Errorf("rule %s: unknown action %q", r.RuleID, r.Action)
	}
	if r.Predicate == nil {
		return fmt.Errorf("rule %s: predicate is required", r.RuleID)
	}
	if err := r.Predicate.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.RuleID, err)
	}
	if r.State == StateCanary && (r.TrafficFraction <= 0 || r.TrafficFraction > MaxTrafficFraction) {
		return fmt.Errorf("rule %s: canary traffic_fraction must be in (0, %v], got %v",
			r.RuleID, MaxTrafficFraction, r.TrafficFraction)
	}
	if r.DeMinimisThresholdPct != nil && (*r.DeMinimisThresholdPct <= 0 || *r.DeMinimisThresholdPct > 100) {
		return fmt.Errorf("rule %s: de_minimis_threshold_pct must be in (0, 100]", r.RuleID)
	}
	return nil
}

// Live reports whether this version participates in evaluation at all
// (production, canary, or shadow).
func (r Rule) Live() bool {
	switch r.State {
	case StateProduction, StateCanary, StateShadow:
		return true
	}
	return false
}

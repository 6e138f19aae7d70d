package rules

import (
	"fmt"
	"time"

	dErrors "licenseiq/pkg/domain-errors"
)

// Approval is one reviewer sign-off on a lifecycle transition.
type Approval struct {
	ApproverID string
	At         time.Time
}

// ImpactResult summarizes an impact-analysis run used to gate promotion.
// OutcomeShift is the absolute change in the BLOCK+REVIEW share of historical
// outcomes under the candidate rule set.
type ImpactResult struct {
	WindowDays     int
	OrdersReplayed int
	OutcomeShift   float64
	RunAt          time.Time
}

// MinImpactWindowDays is the trailing history a promotion-gating analysis
// must cover.
const MinImpactWindowDays = 90

// TransitionRequest asks to move one rule version to a target state.
type TransitionRequest struct {
	RuleID    string
	Version   int
	Target    LifecycleState
	Approvals []Approval

	// Impact is required for canary -> production promotion.
	Impact *ImpactResult
}

// transitions is the lifecycle graph. Rejected is reachable only from the
// pre-canary states; retired -> production is the explicit reactivation edge
// used to roll back to a prior version.
var transitions = map[LifecycleState][]LifecycleState{
	StateDraft:      {StateShadow, StateRejected},
	StateShadow:     {StateCanary, StateRejected},
	StateCanary:     {StateProduction},
	StateProduction: {StateRetired},
	StateRetired:    {StateProduction},
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to LifecycleState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// requiredApprovals returns how many distinct approver identities a
// transition needs. Everything is four-eyes except retiring the active
// production version.
func requiredApprovals(from, to LifecycleState) int {
	if from == StateProduction && to == StateRetired {
		return 1
	}
	return 2
}

// validateTransition checks the pure preconditions: graph edge, approval
// count and distinctness, and the promotion gate for canary -> production.
// Production-uniqueness is checked against the store by the service.
func validateTransition(rule Rule, req TransitionRequest, regressionThreshold float64) error {
	if !CanTransition(rule.State, req.Target) {
		return dErrors.Newf(dErrors.CodeValidation,
			"transition %s -> %s is not allowed for rule %s v%d",
			rule.State, req.Target, rule.RuleID, rule.Version)
	}

	distinct := make(map[string]bool, len(req.Approvals))
	for _, approval := range req.Approvals {
		if approval.ApproverID != "" {
			distinct[approval.ApproverID] = true
		}
	}
	if need := requiredApprovals(rule.State, req.Target); len(distinct) < need {
		return dErrors.Newf(dErrors.CodeValidation,
			"transition %s -> %s requires %d distinct approvers, got %d",
			rule.State, req.Target, need, len(distinct))
	}

	if rule.State == StateCanary && req.Target == StateProduction {
		if req.Impact == nil {
			return dErrors.New(dErrors.CodeValidation,
				"promotion requires a completed impact-analysis run")
		}
		if req.Impact.WindowDays < MinImpactWindowDays {
			return dErrors.Newf(dErrors.CodeValidation,
				"impact analysis covered %d days, need at least %d",
				req.Impact.WindowDays, MinImpactWindowDays)
		}
		if req.Impact.OutcomeShift > regressionThreshold {
			return dErrors.New(dErrors.CodeValidation,
				"impact analysis failed the regression gate").
				WithDetails(fmt.Sprintf("outcome shift %.4f exceeds threshold %.4f",
					req.Impact.OutcomeShift, regressionThreshold))
		}
	}

	return nil
}

package handler

import (
	"time"

	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
	dErrors "licenseiq/pkg/domain-errors"
)

// RulePayload is the wire form of one rule version. The simulate endpoint
// accepts the same shape for candidate rules.
type RulePayload struct {
	RuleID                string      `json:"rule_id"`
	Version               int         `json:"version"`
	Action                string      `json:"action"`
	ReasonCode            string      `json:"reason_code"`
	Citation              string      `json:"citation,omitempty"`
	TrafficFraction       float64     `json:"traffic_fraction,omitempty"`
	DeMinimisThresholdPct *float64    `json:"de_minimis_threshold_pct,omitempty"`
	Predicate             *rules.Expr `json:"predicate"`
}

// ToRule maps the payload onto a draft rule for the tenant. Lifecycle state
// is never caller-supplied: new versions enter as drafts and move only
// through transitions.
func (p *RulePayload) ToRule(tenantID string) rules.Rule {
	return rules.Rule{
		RuleID:                p.RuleID,
		Version:               p.Version,
		TenantID:              tenantID,
		State:                 rules.StateDraft,
		Action:                domain.Outcome(p.Action),
		ReasonCode:            p.ReasonCode,
		Citation:              p.Citation,
		TrafficFraction:       p.TrafficFraction,
		DeMinimisThresholdPct: p.DeMinimisThresholdPct,
		Predicate:             p.Predicate,
	}
}

// SubmitRuleRequest is the POST /rules body.
type SubmitRuleRequest struct {
	RulePayload
}

func (r *SubmitRuleRequest) Validate() error {
	// Full structural validation happens in the service with the tenant
	// attached; here we only reject bodies that cannot map at all.
	if r.RuleID == "" {
		return dErrors.New(dErrors.CodeValidation, "invalid rule").WithDetails("rule_id: required")
	}
	return nil
}

// ApprovalPayload is one approval on a transition.
type ApprovalPayload struct {
	ApproverID string    `json:"approver_id"`
	At         time.Time `json:"at,omitzero"`
}

// ImpactPayload carries the impact analysis backing a promotion.
type ImpactPayload struct {
	WindowDays     int       `json:"window_days"`
	OrdersReplayed int       `json:"orders_replayed"`
	OutcomeShift   float64   `json:"outcome_shift"`
	RunAt          time.Time `json:"run_at"`
}

// TransitionRuleRequest is the POST /rules/{ruleID}/versions/{version}/transition body.
type TransitionRuleRequest struct {
	Target    string            `json:"target"`
	Approvals []ApprovalPayload `json:"approvals"`
	Impact    *ImpactPayload    `json:"impact,omitempty"`
}

func (r *TransitionRuleRequest) Validate() error {
	if r.Target == "" {
		return dErrors.New(dErrors.CodeValidation, "invalid transition").WithDetails("target: required")
	}
	return nil
}

// ToTransition maps the request onto the lifecycle transition.
func (r *TransitionRuleRequest) ToTransition(ruleID string, version int) rules.TransitionRequest {
	approvals := make([]rules.Approval, 0, len(r.Approvals))
	for _, approval := range r.Approvals {
		approvals = append(approvals, rules.Approval{
			ApproverID: approval.ApproverID,
			At:         approval.At,
		})
	}

	req := rules.TransitionRequest{
		RuleID:    ruleID,
		Version:   version,
		Target:    rules.LifecycleState(r.Target),
		Approvals: approvals,
	}
	if r.Impact != nil {
		req.Impact = &rules.ImpactResult{
			WindowDays:     r.Impact.WindowDays,
			OrdersReplayed: r.Impact.OrdersReplayed,
			OutcomeShift:   r.Impact.OutcomeShift,
			RunAt:          r.Impact.RunAt,
		}
	}
	return req
}

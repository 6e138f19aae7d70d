package handler

import (
	"licenseiq/internal/rules"
)

// RuleResponse is the wire form of one stored rule version.
type RuleResponse struct {
	RuleID                string      `json:"rule_id"`
	Version               int         `json:"version"`
	State                 string      `json:"state"`
	Action                string      `json:"action"`
	ReasonCode            string      `json:"reason_code"`
	Citation              string      `json:"citation,omitempty"`
	TrafficFraction       float64     `json:"traffic_fraction,omitempty"`
	DeMinimisThresholdPct *float64    `json:"de_minimis_threshold_pct,omitempty"`
	Predicate             *rules.Expr `json:"predicate"`
}

// ListRulesResponse wraps the active rule set.
type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// TransitionResponse confirms a lifecycle transition.
type TransitionResponse struct {
	RuleID  string `json:"rule_id"`
	Version int    `json:"version"`
	State   string `json:"state"`
}

func toRuleResponse(rule rules.Rule) RuleResponse {
	return RuleResponse{
		RuleID:                rule.RuleID,
		Version:               rule.Version,
		State:                 string(rule.State),
		Action:                string(rule.Action),
		ReasonCode:            rule.ReasonCode,
		Citation:              rule.Citation,
		TrafficFraction:       rule.TrafficFraction,
		DeMinimisThresholdPct: rule.DeMinimisThresholdPct,
		Predicate:             rule.Predicate,
	}
}

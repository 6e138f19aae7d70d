package handler

import (
	"time"

	"licenseiq/internal/domain"
)

// DecisionResponse is the wire form of a Decision.
type DecisionResponse struct {
	AuditID     string         `json:"audit_id"`
	OrderID     string         `json:"order_id"`
	Outcome     string         `json:"outcome"`
	Lines       []LineResponse `json:"lines"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// LineResponse is the per-line outcome with citations.
type LineResponse struct {
	LineNo         int      `json:"line_no"`
	Outcome        string   `json:"outcome"`
	MatchedRuleIDs []string `json:"matched_rule_ids"`
	ShadowRuleIDs  []string `json:"shadow_rule_ids,omitempty"`
	ReasonCode     string   `json:"reason_code"`
	Why            string   `json:"why,omitempty"`
	Fix            string   `json:"fix,omitempty"`
}

func toDecisionResponse(decision *domain.Decision) DecisionResponse {
	lines := make([]LineResponse, 0, len(decision.Lines))
	for _, line := range decision.Lines {
		matched := line.MatchedRuleIDs
		if matched == nil {
			matched = []string{}
		}
		lines = append(lines, LineResponse{
			LineNo:         line.LineNo,
			Outcome:        string(line.Outcome),
			MatchedRuleIDs: matched,
			ShadowRuleIDs:  line.ShadowRuleIDs,
			ReasonCode:     line.ReasonCode,
			Why:            line.Why,
			Fix:            line.Fix,
		})
	}
	return DecisionResponse{
		AuditID:     decision.AuditID.String(),
		OrderID:     decision.OrderID,
		Outcome:     string(decision.Outcome),
		Lines:       lines,
		EvaluatedAt: decision.EvaluatedAt,
	}
}

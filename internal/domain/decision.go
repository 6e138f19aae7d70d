package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the three-valued determination result.
type Outcome string

const (
	OutcomeAllow  Outcome = "ALLOW"
	OutcomeReview Outcome = "REVIEW"
	OutcomeBlock  Outcome = "BLOCK"
)

// severity orders outcomes for aggregation. BLOCK dominates REVIEW dominates
// ALLOW.
func (o Outcome) severity() int {
	switch o {
	case OutcomeBlock:
		return 2
	case OutcomeReview:
		return 1
	default:
		return 0
	}
}

// MostRestrictive returns the dominant of two outcomes.
func MostRestrictive(a, b Outcome) Outcome {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Engine-assigned reason codes. Rule matches carry the matched rule's own
// reason code instead.
const (
	ReasonScreeningHit        = "SCREENING_HIT"
	ReasonUnresolvedReference = "UNRESOLVED_REFERENCE"
	ReasonDependencyTimeout   = "DEPENDENCY_TIMEOUT"
	ReasonNoRuleMatched       = "NO_RULE_MATCHED"
)

// LineOutcome is the per-line evaluation result. MatchedRuleIDs retains every
// live rule that matched, not just the one that set the outcome, so citations
// stay complete. Shadow matches are recorded separately and never influence
// Outcome.
type LineOutcome struct {
	LineNo         int
	Outcome        Outcome
	MatchedRuleIDs []string
	ShadowRuleIDs  []string
	ReasonCode     string
	Why            string
	Fix            string
}

// Decision is the order-level determination. Immutable after creation: a
// re-evaluation produces a new Decision under a fresh AuditID, never an
// update to a prior one.
type Decision struct {
	AuditID     uuid.UUID
	OrderID     string
	TenantID    string
	Outcome     Outcome
	Lines       []LineOutcome
	EvaluatedAt time.Time
}

// AggregateOutcome folds line outcomes into the order-level outcome.
// An order with no lines evaluates to ALLOW; validation prevents that case
// from reaching evaluation in practice.
func AggregateOutcome(lines []LineOutcome) Outcome {
	outcome := OutcomeAllow
	for _, line := range lines {
		outcome = MostRestrictive(outcome, line.Outcome)
	}
	return outcome
}

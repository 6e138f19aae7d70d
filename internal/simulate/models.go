// Package simulate replays historical orders against candidate rules and
// reports what would change. Simulation is side-effect-free: it stores no
// decisions, emits no audit events, and touches no lifecycle state.
package simulate

import (
	"time"

	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
	dErrors "licenseiq/pkg/domain-errors"
)

// Request describes one simulation run.
type Request struct {
	// Candidates are evaluated as if live, overlaying any active versions
	// of the same rule IDs.
	Candidates []rules.Rule

	// WindowDays is how far back to replay history.
	WindowDays int
}

func (r *Request) Validate() error {
	var details []string
	if r.WindowDays < 1 {
		details = append(details, "window_days: must be at least 1")
	}
	if len(r.Candidates) == 0 {
		details = append(details, "candidates: at least one candidate rule is required")
	}
	for _, candidate := range r.Candidates {
		if err := candidate.Validate(); err != nil {
			details = append(details, "candidates: "+candidate.RuleID+": "+err.Error())
		}
	}
	if len(details) > 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid simulation request").WithDetails(details...)
	}
	return nil
}

// LineChange is one line whose outcome differs under the candidate rules.
type LineChange struct {
	OrderID string
	LineNo  int
	Before  domain.Outcome
	After   domain.Outcome

	// CandidateMatches are the candidate rule IDs that matched the line in
	// the candidate run.
	CandidateMatches []string
}

// DiffReport summarizes a simulation run. Two runs over the same window and
// candidates produce identical reports apart from RunAt.
type DiffReport struct {
	WindowDays     int
	OrdersReplayed int
	LinesReplayed  int
	Changes        []LineChange

	// OutcomeShift is the absolute change in the BLOCK+REVIEW share of
	// replayed line outcomes under the candidate rule set.
	OutcomeShift float64

	BaselineCounts  map[domain.Outcome]int
	CandidateCounts map[domain.Outcome]int
	RunAt           time.Time
}

// ImpactResult converts the report into the shape the rule lifecycle's
// promotion gate consumes.
func (r *DiffReport) ImpactResult() rules.ImpactResult {
	return rules.ImpactResult{
		WindowDays:     r.WindowDays,
		OrdersReplayed: r.OrdersReplayed,
		OutcomeShift:   r.OutcomeShift,
		RunAt:          r.RunAt,
	}
}

package handler

import (
	"time"

	"licenseiq/internal/simulate"
)

// DiffReportResponse is the wire form of a simulation report.
type DiffReportResponse struct {
	WindowDays      int                  `json:"window_days"`
	OrdersReplayed  int                  `json:"orders_replayed"`
	LinesReplayed   int                  `json:"lines_replayed"`
	OutcomeShift    float64              `json:"outcome_shift"`
	Changes         []LineChangeResponse `json:"changes"`
	BaselineCounts  map[string]int       `json:"baseline_counts"`
	CandidateCounts map[string]int       `json:"candidate_counts"`
	RunAt           time.Time            `json:"run_at"`
}

// LineChangeResponse is one flipped line.
type LineChangeResponse struct {
	OrderID          string   `json:"order_id"`
	LineNo           int      `json:"line_no"`
	Before           string   `json:"before"`
	After            string   `json:"after"`
	CandidateMatches []string `json:"candidate_matches,omitempty"`
}

func toDiffReportResponse(report *simulate.DiffReport) DiffReportResponse {
	changes := make([]LineChangeResponse, 0, len(report.Changes))
	for _, change := range report.Changes {
		changes = append(changes, LineChangeResponse{
			OrderID:          change.OrderID,
			LineNo:           change.LineNo,
			Before:           string(change.Before),
			After:            string(change.After),
			CandidateMatches: change.CandidateMatches,
		})
	}

	baseline := make(map[string]int, len(report.BaselineCounts))
	for outcome, n := range report.BaselineCounts {
		baseline[string(outcome)] = n
	}
	candidate := make(map[string]int, len(report.CandidateCounts))
	for outcome, n := range report.CandidateCounts {
		candidate[string(outcome)] = n
	}

	return DiffReportResponse{
		WindowDays:      report.WindowDays,
		OrdersReplayed:  report.OrdersReplayed,
		LinesReplayed:   report.LinesReplayed,
		OutcomeShift:    report.OutcomeShift,
		Changes:         changes,
		BaselineCounts:  baseline,
		CandidateCounts: candidate,
		RunAt:           report.RunAt,
	}
}

package simulate

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"licenseiq/internal/controls"
	"licenseiq/internal/determine"
	"licenseiq/internal/domain"
	"licenseiq/internal/history"
	"licenseiq/internal/masterdata"
	"licenseiq/internal/platform/config"
	"licenseiq/internal/rules"
	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

// replayConcurrency bounds how many historical orders replay at once.
const replayConcurrency = 8

// RuleProvider supplies the active baseline rule set.
type RuleProvider interface {
	ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]rules.Rule, error)
}

// Service runs simulations. It shares the determination engine with live
// evaluation, so what a simulation predicts is exactly what promotion would
// ship.
type Service struct {
	engine   *determine.Engine
	resolver masterdata.Resolver
	rules    RuleProvider
	controls controls.Source
	history  history.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      config.EngineConfig
}

func NewService(
	resolver masterdata.Resolver,
	ruleProvider RuleProvider,
	controlSource controls.Source,
	historyStore history.Store,
	logger *slog.Logger,
	cfg config.EngineConfig,
) *Service {
	return &Service{
		engine:   determine.NewEngine(cfg.DeMinimisDefaultPct),
		resolver: resolver,
		rules:    ruleProvider,
		controls: controlSource,
		history:  historyStore,
		logger:   logger,
		tracer:   otel.Tracer("simulate-service"),
		cfg:      cfg,
	}
}

// Simulate replays the tenant's history under the candidate rules and
// reports the diff against the current baseline. Cancelling the context
// aborts the run; no partial results escape.
func (s *Service) Simulate(ctx context.Context, req Request) (*DiffReport, error) {
	ctx, span := s.tracer.Start(ctx, "simulate.Simulate")
	defer span.End()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing tenant")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	asOf := requestcontext.Now(ctx)
	baseline, err := s.rules.ListActive(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	candidate := overlay(baseline, req.Candidates)

	snapshot, err := s.controls.Snapshot(ctx, asOf)
	if err != nil {
		s.logger.WarnContext(ctx, "control list unavailable during simulation", "error", err)
		snapshot = nil
	}

	since := asOf.AddDate(0, 0, -req.WindowDays)
	records, err := s.history.ListSince(ctx, tenantID, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load order history")
	}

	report := &DiffReport{
		WindowDays:      req.WindowDays,
		OrdersReplayed:  len(records),
		BaselineCounts:  make(map[domain.Outcome]int),
		CandidateCounts: make(map[domain.Outcome]int),
		RunAt:           asOf,
	}

	perOrder := make([][]LineChange, len(records))
	counts := make([]replayCounts, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayConcurrency)
	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			changes, c := s.replayOrder(gctx, record.Order, baseline, candidate, snapshot, asOf)
			perOrder[i] = changes
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range records {
		report.Changes = append(report.Changes, perOrder[i]...)
		report.LinesReplayed += counts[i].lines
		for outcome, n := range counts[i].baseline {
			report.BaselineCounts[outcome] += n
		}
		for outcome, n := range counts[i].candidate {
			report.CandidateCounts[outcome] += n
		}
	}
	if report.LinesReplayed > 0 {
		// The promotion gate watches the restrictive (BLOCK+REVIEW) share of
		// outcomes, not the raw flip count: a BLOCK -> REVIEW narrowing moves
		// lines without changing how much trade is held.
		total := float64(report.LinesReplayed)
		before := float64(report.BaselineCounts[domain.OutcomeBlock]+report.BaselineCounts[domain.OutcomeReview]) / total
		after := float64(report.CandidateCounts[domain.OutcomeBlock]+report.CandidateCounts[domain.OutcomeReview]) / total
		report.OutcomeShift = math.Abs(after - before)
	}

	s.logger.InfoContext(ctx, "simulation complete",
		"tenant_id", tenantID,
		"window_days", req.WindowDays,
		"orders_replayed", report.OrdersReplayed,
		"lines_changed", len(report.Changes),
		"outcome_shift", report.OutcomeShift,
	)
	return report, nil
}

type replayCounts struct {
	lines     int
	baseline  map[domain.Outcome]int
	candidate map[domain.Outcome]int
}

func (s *Service) replayOrder(
	ctx context.Context,
	order domain.Order,
	baseline, candidate []rules.Rule,
	snapshot *controls.Snapshot,
	asOf time.Time,
) ([]LineChange, replayCounts) {
	counts := replayCounts{
		baseline:  make(map[domain.Outcome]int),
		candidate: make(map[domain.Outcome]int),
	}

	party := s.lookupParty(ctx, order.BuyerPartyRef)

	var changes []LineChange
	for _, line := range order.Lines {
		evidence := determine.Evidence{Party: party}
		evidence.Product, evidence.Timeout = s.lookupProduct(ctx, line.ProductRef)

		before := s.engine.EvaluateLine(order, line, evidence, baseline, snapshot, asOf)
		after := s.engine.EvaluateLine(order, line, evidence, candidate, snapshot, asOf)

		counts.lines++
		counts.baseline[before.Outcome]++
		counts.candidate[after.Outcome]++

		if before.Outcome != after.Outcome {
			changes = append(changes, LineChange{
				OrderID:          order.OrderID,
				LineNo:           line.LineNo,
				Before:           before.Outcome,
				After:            after.Outcome,
				CandidateMatches: after.MatchedRuleIDs,
			})
		}
	}
	return changes, counts
}

func (s *Service) lookupParty(ctx context.Context, partyRef string) *domain.Party {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	party, err := s.resolver.ResolveParty(lookupCtx, partyRef)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "party lookup failed during replay", "party_ref", partyRef, "error", err)
		}
		return nil
	}
	return party
}

func (s *Service) lookupProduct(ctx context.Context, productRef string) (*domain.Product, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	product, err := s.resolver.ResolveProduct(lookupCtx, productRef)
	switch {
	case err == nil:
		return product, false
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, false
	default:
		s.logger.WarnContext(ctx, "product lookup failed during replay", "product_ref", productRef, "error", err)
		return nil, errors.Is(err, context.DeadlineExceeded)
	}
}

// overlay applies candidates on top of the baseline: every version of an
// overlaid rule ID is replaced, and candidates evaluate as if in production
// so the diff reflects a full rollout.
func overlay(baseline, candidates []rules.Rule) []rules.Rule {
	replaced := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		replaced[candidate.RuleID] = true
	}

	out := make([]rules.Rule, 0, len(baseline)+len(candidates))
	for _, rule := range baseline {
		if !replaced[rule.RuleID] {
			out = append(out, rule)
		}
	}
	for _, candidate := range candidates {
		candidate.State = rules.StateProduction
		out = append(out, candidate)
	}
	return out
}

package determine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"licenseiq/internal/audit"
	"licenseiq/internal/controls"
	"licenseiq/internal/determine/metrics"
	"licenseiq/internal/domain"
	"licenseiq/internal/history"
	"licenseiq/internal/masterdata"
	"licenseiq/internal/platform/config"
	"licenseiq/internal/rules"
	domainerrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

// claimPollInterval is how often a coalesced caller checks whether the
// claim holder has stored its decision.
const claimPollInterval = 50 * time.Millisecond

// RuleProvider supplies the rule set a tenant evaluates against.
type RuleProvider interface {
	ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]rules.Rule, error)
}

// AuditPort receives determination events.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}

// HistoryPort records evaluated orders for later replay in simulation and
// impact analysis. Optional: a nil port disables recording.
type HistoryPort interface {
	Record(ctx context.Context, tenantID string, record history.Record) error
}

// EvaluateRequest is one order evaluation. The idempotency key is optional;
// without it every call produces a fresh decision.
type EvaluateRequest struct {
	Order          domain.Order
	IdempotencyKey string
}

// Service orchestrates a determination: resolve master data, evaluate lines
// through the engine, persist and audit the decision. The engine stays pure;
// every side effect lives here.
type Service struct {
	engine    *Engine
	resolver  masterdata.Resolver
	rules     RuleProvider
	controls  controls.Source
	decisions DecisionStore
	claims    ClaimStore
	auditor   AuditPort
	history   HistoryPort
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	cfg       config.EngineConfig
}

func NewService(
	resolver masterdata.Resolver,
	ruleProvider RuleProvider,
	controlSource controls.Source,
	decisions DecisionStore,
	claims ClaimStore,
	auditor AuditPort,
	historyPort HistoryPort,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg config.EngineConfig,
) *Service {
	return &Service{
		engine:    NewEngine(cfg.DeMinimisDefaultPct),
		resolver:  resolver,
		rules:     ruleProvider,
		controls:  controlSource,
		decisions: decisions,
		claims:    claims,
		auditor:   auditor,
		history:   historyPort,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("determine-service"),
		cfg:       cfg,
	}
}

// Evaluate produces the Decision for one order. Re-submission with the same
// idempotency key inside the window replays the stored decision byte for
// byte; concurrent submissions coalesce onto one evaluation via the claim
// store.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "determine.Evaluate")
	defer span.End()

	start := time.Now()
	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "missing tenant")
	}
	if err := req.Order.Validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		prior, claimed, err := s.replayOrClaim(ctx, tenantID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			s.metrics.IncrementIdempotentReplay()
			s.logger.InfoContext(ctx, "determination replayed",
				"tenant_id", tenantID,
				"order_id", req.Order.OrderID,
				"audit_id", prior.AuditID,
			)
			return prior, nil
		}
		if claimed {
			defer s.releaseClaim(ctx, tenantID, req.IdempotencyKey)
		}
	}

	decision, err := s.evaluate(ctx, tenantID, req.Order)
	if err != nil {
		return nil, err
	}

	if err := s.decisions.Save(ctx, *decision, req.IdempotencyKey, s.cfg.IdempotencyWindow); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store decision")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Kind:      audit.EventDeterminationCreated,
		TenantID:  tenantID,
		Subject:   decision.OrderID,
		AuditID:   decision.AuditID.String(),
		Decision:  string(decision.Outcome),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.ActorID(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "audit_id", decision.AuditID, "error", err)
	}

	if s.history != nil {
		if err := s.history.Record(ctx, tenantID, history.Record{
			Order:       req.Order,
			Outcome:     decision.Outcome,
			EvaluatedAt: decision.EvaluatedAt,
		}); err != nil {
			s.logger.WarnContext(ctx, "history record failed", "order_id", decision.OrderID, "error", err)
		}
	}

	s.metrics.IncrementOutcome(tenantID, string(decision.Outcome))
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	s.logger.InfoContext(ctx, "determination created",
		"tenant_id", tenantID,
		"order_id", decision.OrderID,
		"audit_id", decision.AuditID,
		"outcome", decision.Outcome,
		"lines", len(decision.Lines),
	)
	return decision, nil
}

func (s *Service) releaseClaim(ctx context.Context, tenantID, key string) {
	if err := s.claims.Release(context.WithoutCancel(ctx), tenantID, key); err != nil {
		s.logger.WarnContext(ctx, "claim release failed", "error", err)
	}
}

// replayOrClaim returns a stored decision for the key, or acquires the
// evaluation claim. When another evaluation holds the claim it waits a
// bounded interval for that decision to appear; past the wait the caller
// gets a conflict and should retry.
func (s *Service) replayOrClaim(ctx context.Context, tenantID, key string) (*domain.Decision, bool, error) {
	prior, err := s.decisions.FindByKey(ctx, tenantID, key)
	if err == nil {
		return prior, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "idempotency lookup")
	}

	deadline := time.Now().Add(s.cfg.ClaimWait)
	contended := false
	for {
		err := s.claims.Acquire(ctx, tenantID, key, s.cfg.ClaimTTL)
		if err != nil && !errors.Is(err, sentinel.ErrClaimHeld) {
			return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "acquire claim")
		}
		if err == nil {
			// The prior holder may have saved and released between our
			// lookup and this acquire. Re-check so exactly one evaluation
			// proceeds per key.
			prior, err := s.decisions.FindByKey(ctx, tenantID, key)
			if err == nil {
				s.releaseClaim(ctx, tenantID, key)
				return prior, false, nil
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				s.releaseClaim(ctx, tenantID, key)
				return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "idempotency lookup")
			}
			return nil, true, nil
		}
		if !contended {
			contended = true
			s.metrics.IncrementClaimConflict()
		}

		prior, err := s.decisions.FindByKey(ctx, tenantID, key)
		if err == nil {
			return prior, false, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "idempotency lookup")
		}
		if time.Now().After(deadline) {
			return nil, false, domainerrors.New(domainerrors.CodeConflict, "evaluation in progress for this idempotency key")
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(claimPollInterval):
		}
	}
}

func (s *Service) evaluate(ctx context.Context, tenantID string, order domain.Order) (*domain.Decision, error) {
	asOf := requestcontext.Now(ctx)

	ruleSet, err := s.rules.ListActive(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.controls.Snapshot(ctx, asOf)
	if err != nil {
		// Evaluation proceeds without controlled-origin facts; rules that
		// depend on them simply stop matching, which is the conservative
		// direction for ALLOW-shaped rule sets.
		s.logger.WarnContext(ctx, "control list unavailable", "error", err)
		snapshot = nil
	}

	party, partyTimeout := s.resolveParty(ctx, order.BuyerPartyRef)
	evidence := s.resolveProducts(ctx, order, party, partyTimeout)

	outcomes := make([]domain.LineOutcome, len(order.Lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range order.Lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.engine.EvaluateLine(order, line, evidence[i], ruleSet, snapshot, asOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Decision{
		AuditID:     uuid.New(),
		OrderID:     order.OrderID,
		TenantID:    tenantID,
		Outcome:     domain.AggregateOutcome(outcomes),
		Lines:       outcomes,
		EvaluatedAt: asOf,
	}, nil
}

// resolveParty fetches the buyer party once for the order. A not-found
// result is a nil party, which the engine reports as an unresolved
// reference; a deadline overrun degrades to DEPENDENCY_TIMEOUT instead.
func (s *Service) resolveParty(ctx context.Context, partyRef string) (*domain.Party, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	start := time.Now()
	party, err := s.resolver.ResolveParty(lookupCtx, partyRef)
	s.metrics.ObserveResolveLatency("party", time.Since(start))

	switch {
	case err == nil:
		return party, false
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, false
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "party resolution timed out", "party_ref", partyRef)
		return nil, true
	default:
		s.logger.WarnContext(ctx, "party resolution failed", "party_ref", partyRef, "error", err)
		return nil, true
	}
}

// resolveProducts fetches each line's product in parallel and assembles the
// per-line evidence. Resolution failures never fail the order: they are
// recorded in the evidence and surface as degraded line outcomes.
func (s *Service) resolveProducts(ctx context.Context, order domain.Order, party *domain.Party, partyTimeout bool) []Evidence {
	evidence := make([]Evidence, len(order.Lines))

	var g errgroup.Group
	for i, line := range order.Lines {
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
			defer cancel()

			start := time.Now()
			product, err := s.resolver.ResolveProduct(lookupCtx, line.ProductRef)
			s.metrics.ObserveResolveLatency("product", time.Since(start))

			evidence[i] = Evidence{Party: party, Timeout: partyTimeout}
			switch {
			case err == nil:
				evidence[i].Product = product
			case errors.Is(err, sentinel.ErrNotFound):
				// leave Product nil
			case errors.Is(err, context.DeadlineExceeded):
				s.logger.WarnContext(ctx, "product resolution timed out", "product_ref", line.ProductRef)
				evidence[i].Timeout = true
			default:
				s.logger.WarnContext(ctx, "product resolution failed", "product_ref", line.ProductRef, "error", err)
				evidence[i].Timeout = true
			}
			return nil
		})
	}
	_ = g.Wait()

	return evidence
}

// Get returns a stored decision by audit ID.
func (s *Service) Get(ctx context.Context, auditID uuid.UUID) (*domain.Decision, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "missing tenant")
	}

	decision, err := s.decisions.Get(ctx, tenantID, auditID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "decision not found")
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load decision")
	}
	return decision, nil
}

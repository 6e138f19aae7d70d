package rules

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"licenseiq/internal/audit"
	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

// AuditPort lets the rule service emit status.changed events without
// depending on a concrete sink.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the rule repository boundary: it validates submissions, enforces
// the lifecycle state machine, and guards the production-uniqueness
// invariant. All reads evaluation depends on go through ListActive.
type Service struct {
	store               Store
	auditor             AuditPort
	logger              *slog.Logger
	regressionThreshold float64
}

func NewService(store Store, auditor AuditPort, logger *slog.Logger, regressionThreshold float64) *Service {
	return &Service{
		store:               store,
		auditor:             auditor,
		logger:              logger,
		regressionThreshold: regressionThreshold,
	}
}

// Submit registers a new draft version. The version must be strictly greater
// than any existing version of the same rule.
func (s *Service) Submit(ctx context.Context, rule Rule) error {
	if rule.State == "" {
		rule.State = StateDraft
	}
	if rule.State != StateDraft {
		return dErrors.New(dErrors.CodeValidation, "new rule versions must be submitted as drafts")
	}
	if err := rule.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule definition")
	}

	existing, err := s.store.ListVersions(ctx, rule.TenantID, rule.RuleID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	for _, prior := range existing {
		if prior.Version >= rule.Version {
			return dErrors.Newf(dErrors.CodeConflict,
				"rule %s version %d is not greater than existing version %d",
				rule.RuleID, rule.Version, prior.Version)
		}
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	if err := s.store.Put(ctx, rule); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeConflict,
				"rule %s v%d already exists", rule.RuleID, rule.Version)
		}
		return err
	}
	return nil
}

// ListActive returns the rule versions that participate in evaluation for a
// tenant, and enforces the one-production-version-per-rule invariant. A
// violated invariant is fatal: evaluation must not proceed against an
// ambiguous rule set.
func (s *Service) ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]Rule, error) {
	live, err := s.store.ListLive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	production := make(map[string]int, len(live))
	for _, rule := range live {
		if rule.State == StateProduction {
			production[rule.RuleID]++
			if production[rule.RuleID] > 1 {
				return nil, dErrors.Newf(dErrors.CodeRuleConflict,
					"rule %s has multiple production versions", rule.RuleID)
			}
		}
	}

	// asOf is accepted for interface stability: live rules are not presently
	// time-scoped, but callers must already pass the evaluation instant so
	// adding effective-dating later does not change the contract.
	_ = asOf
	return live, nil
}

// Transition moves one rule version through the lifecycle state machine.
func (s *Service) Transition(ctx context.Context, tenantID string, req TransitionRequest) error {
	rule, err := s.store.Get(ctx, tenantID, req.RuleID, req.Version)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "rule %s v%d not found", req.RuleID, req.Version)
		}
		return err
	}

	if err := validateTransition(rule, req, s.regressionThreshold); err != nil {
		return err
	}

	// Entering production may not create a second active production version.
	if req.Target == StateProduction {
		versions, err := s.store.ListVersions(ctx, tenantID, req.RuleID)
		if err != nil {
			return err
		}
		for _, other := range versions {
			if other.Version != req.Version && other.State == StateProduction {
				return dErrors.Newf(dErrors.CodeRuleConflict,
					"rule %s v%d is already in production; retire it first",
					req.RuleID, other.Version)
			}
		}
	}

	if err := s.store.UpdateState(ctx, tenantID, req.RuleID, req.Version, req.Target); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rule lifecycle transition",
			"tenant_id", tenantID,
			"rule_id", req.RuleID,
			"version", req.Version,
			"from", rule.State,
			"to", req.Target,
			"approvers", len(req.Approvals),
		)
	}

	if s.auditor != nil {
		event := audit.Event{
			Kind:      audit.EventStatusChanged,
			TenantID:  tenantID,
			Subject:   req.RuleID,
			Decision:  string(req.Target),
			Reason:    string(rule.State),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   requestcontext.ActorID(ctx),
		}
		if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "status.changed emit failed",
				"rule_id", req.RuleID, "error", err)
		}
	}

	return nil
}

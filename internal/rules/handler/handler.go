// Package handler exposes the rule management endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"licenseiq/internal/rules"
	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/httputil"
	authmw "licenseiq/pkg/platform/middleware/auth"
	"licenseiq/pkg/requestcontext"
)

// Service defines the rule operations the handler needs.
type Service interface {
	Submit(ctx context.Context, rule rules.Rule) error
	Transition(ctx context.Context, tenantID string, req rules.TransitionRequest) error
	ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]rules.Rule, error)
}

// Handler handles rule management endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
}

// New creates a new rules Handler.
func New(service Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the rule routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		g.Post("/rules", h.handleSubmit)
		g.Get("/rules", h.handleListActive)
		g.Post("/rules/{ruleID}/versions/{version}/transition", h.handleTransition)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[SubmitRuleRequest](w, r, h.logger)
	if !ok {
		return
	}

	rule := req.ToRule(requestcontext.TenantID(ctx))
	if err := h.service.Submit(ctx, rule); err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	active, err := h.service.ListActive(ctx, requestcontext.TenantID(ctx), requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	out := make([]RuleResponse, 0, len(active))
	for _, rule := range active {
		out = append(out, toRuleResponse(rule))
	}
	httputil.WriteJSON(w, http.StatusOK, ListRulesResponse{Rules: out})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid version"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRuleRequest](w, r, h.logger)
	if !ok {
		return
	}

	transition := req.ToTransition(chi.URLParam(r, "ruleID"), version)
	if err := h.service.Transition(ctx, requestcontext.TenantID(ctx), transition); err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TransitionResponse{
		RuleID:  transition.RuleID,
		Version: transition.Version,
		State:   string(transition.Target),
	})
}

// Package handler exposes the determination endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"licenseiq/internal/determine"
	"licenseiq/internal/domain"
	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/httputil"
	authmw "licenseiq/pkg/platform/middleware/auth"
)

// HeaderIdempotencyKey carries the caller's idempotency key; re-submissions
// with the same key inside the window replay the stored decision.
const HeaderIdempotencyKey = "Idempotency-Key"

// Service defines the determination operations the handler needs.
type Service interface {
	Evaluate(ctx context.Context, req determine.EvaluateRequest) (*domain.Decision, error)
	Get(ctx context.Context, auditID uuid.UUID) (*domain.Decision, error)
}

// Handler handles determination endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
}

// New creates a new determination Handler.
func New(service Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the determination routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		g.Post("/determine", h.handleEvaluate)
		g.Get("/decisions/{auditID}", h.handleGetDecision)
	})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[EvaluateOrderRequest](w, r, h.logger)
	if !ok {
		return
	}

	decision, err := h.service.Evaluate(ctx, determine.EvaluateRequest{
		Order:          req.ToOrder(),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (h *Handler) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	auditID, err := uuid.Parse(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid audit id"))
		return
	}

	decision, err := h.service.Get(ctx, auditID)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(decision))
}

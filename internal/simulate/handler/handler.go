// Package handler exposes the simulation endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	ruleshandler "licenseiq/internal/rules/handler"
	"licenseiq/internal/simulate"
	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/httputil"
	authmw "licenseiq/pkg/platform/middleware/auth"
	"licenseiq/pkg/requestcontext"
)

// Service defines the simulation operations the handler needs.
type Service interface {
	Simulate(ctx context.Context, req simulate.Request) (*simulate.DiffReport, error)
}

// SimulateRequest is the POST /simulate body. Candidates use the same wire
// form as rule submission.
type SimulateRequest struct {
	Candidates []ruleshandler.RulePayload `json:"candidates"`
	WindowDays int                        `json:"window_days"`
}

func (r *SimulateRequest) Validate() error {
	if len(r.Candidates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid simulation request").
			WithDetails("candidates: at least one candidate rule is required")
	}
	return nil
}

// Handler handles the simulation endpoint.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
}

// New creates a new simulation Handler.
func New(service Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the simulation route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		g.Post("/simulate", h.handleSimulate)
	})
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[SimulateRequest](w, r, h.logger)
	if !ok {
		return
	}

	tenantID := requestcontext.TenantID(ctx)
	simReq := simulate.Request{WindowDays: req.WindowDays}
	for _, candidate := range req.Candidates {
		simReq.Candidates = append(simReq.Candidates, candidate.ToRule(tenantID))
	}

	report, err := h.service.Simulate(ctx, simReq)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toDiffReportResponse(report))
}

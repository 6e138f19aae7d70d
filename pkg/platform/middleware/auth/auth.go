// Package auth provides JWT bearer authentication middleware. Validated
// tenant and actor claims land in the request context; handlers and services
// read them through requestcontext and never touch tokens themselves.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "licenseiq/pkg/domain-errors"
	"licenseiq/pkg/platform/httputil"
	request "licenseiq/pkg/platform/middleware/request"
	"licenseiq/pkg/requestcontext"
)

// JWTClaims represents the claims the middleware expects from the validator.
type JWTClaims struct {
	TenantID string
	ActorID  string
}

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateTenantToken(tokenString string) (*JWTClaims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's tenant and actor in the context. Rejections use the same error
// envelope as the handlers.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "

			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				httputil.WriteError(r.Context(), w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateTenantToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx := requestcontext.WithTenantID(r.Context(), claims.TenantID)
			ctx = requestcontext.WithActorID(ctx, claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

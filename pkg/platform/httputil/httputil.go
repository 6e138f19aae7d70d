// Package httputil centralizes JSON encoding, request decoding, and domain
// error translation for HTTP handlers so transport concerns stay out of
// services.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	dErrors "licenseiq/pkg/domain-errors"
)

// ErrorEnvelope is the uniform error shape returned at the boundary.
type ErrorEnvelope struct {
	Code    string   `json:"code"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	TraceID string   `json:"trace_id,omitempty"`
}

// Validatable is implemented by request types that validate and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON encodes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the uniform error envelope. Internal errors
// omit the message so infrastructure details never leak to callers; the
// trace_id is enough to correlate with logs.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := ErrorEnvelope{
		Code:    string(code),
		TraceID: traceID(ctx),
	}

	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		envelope.Message = de.Message
		envelope.Details = de.Details
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), envelope)
}

// DecodeAndPrepare decodes the request body into T and runs its validation.
// On failure it writes the error response and returns ok=false; the handler
// should simply return.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (PT, bool) {
	ctx := r.Context()

	req := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request decode failed", "error", err)
		}
		WriteError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		WriteError(ctx, w, err)
		return nil, false
	}

	return req, true
}

// traceID extracts the active span's trace ID for the error envelope.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

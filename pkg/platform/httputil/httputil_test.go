package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "licenseiq/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(context.Background(), w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Code != "internal_error" {
			t.Fatalf("expected code internal_error, got %q", body.Code)
		}
		if body.Message != "" {
			t.Fatalf("expected message to be omitted for internal errors, got %q", body.Message)
		}
	})

	t.Run("validation error includes message and details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.New(dErrors.CodeValidation, "invalid order").
			WithDetails("line 2: quantity must be positive")
		WriteError(context.Background(), w, err)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Code != "validation_error" {
			t.Fatalf("expected code validation_error, got %q", body.Code)
		}
		if body.Message != "invalid order" {
			t.Fatalf("expected message to be returned for validation errors, got %q", body.Message)
		}
		if len(body.Details) != 1 || body.Details[0] != "line 2: quantity must be positive" {
			t.Fatalf("expected details to round-trip, got %v", body.Details)
		}
	})

	t.Run("rule conflict maps to 409", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(context.Background(), w, dErrors.New(dErrors.CodeRuleConflict, "two production versions"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
	})

	t.Run("non-domain error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(context.Background(), w, context.DeadlineExceeded)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

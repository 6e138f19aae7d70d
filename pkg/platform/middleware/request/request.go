// Package request provides request identification middleware. Every request
// gets a request ID, propagated through the context into logs and audit
// events.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"licenseiq/pkg/requestcontext"
)

// HeaderRequestID is the inbound and outbound request ID header.
const HeaderRequestID = "X-Request-Id"

// RequestID assigns a request ID, honoring one supplied by the caller so IDs
// survive gateway hops. The ID is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// Package requesttime provides middleware for request-scoped time. All
// operations within a single HTTP request use the same "now" timestamp,
// ensuring consistency across rule selection, control list expiry checks,
// and audit timestamps.
package requesttime

import (
	"net/http"
	"time"

	"licenseiq/pkg/requestcontext"
)

// HeaderEvaluationTime lets trusted callers pin the as-of instant, used by
// replay tooling to re-evaluate an order against the rules and control lists
// in force at a past moment.
const HeaderEvaluationTime = "X-Evaluation-Time"

// Middleware captures the request's as-of time and stores it in the context.
// Without the override header the as-of time is simply the arrival time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if raw := r.Header.Get(HeaderEvaluationTime); raw != "" {
			if pinned, err := time.Parse(time.RFC3339, raw); err == nil {
				now = pinned
			}
		}

		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

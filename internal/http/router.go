// Package httpapi composes the public HTTP surface: global middleware,
// feature handlers, health, and metrics. Handlers delegate to domain
// services; no business logic lives here.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"licenseiq/pkg/platform/middleware/logging"
	"licenseiq/pkg/platform/middleware/request"
	"licenseiq/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by feature handlers that attach their routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one backing dependency.
type HealthChecker func() error

// NewRouter builds the composed router. Feature handlers carry their own
// auth middleware; health and metrics stay unauthenticated for liveness
// checks and scrapers.
func NewRouter(logger *slog.Logger, health map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(logging.Logger(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, handler := range handlers {
		handler.Register(r)
	}
	return r
}

func handleHealth(health map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		body := []byte(`{"status":"ok"}`)
		for name, check := range health {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body = []byte(`{"status":"degraded","failing":"` + name + `"}`)
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

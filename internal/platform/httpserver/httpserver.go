package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Header reads are bounded tightly; bodies get a
// looser window since rule packs and multi-line orders can be large. The
// per-request deadline is enforced by the router's timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

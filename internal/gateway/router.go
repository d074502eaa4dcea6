// ABOUTME: chi router for the agent HTTP API and the extension WebSocket mount
// ABOUTME: Applies request logging and recovery; bearer auth guards the agent routes when enabled

package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/2389/dom-relay/internal/auth"
)

// routes builds the HTTP handler served on http_addr.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	// Health stays unauthenticated so supervisors can probe it.
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	// The extension authenticates by origin and loopback, not by token.
	r.Handle("/extension", g.extension)

	r.Group(func(r chi.Router) {
		r.Use(g.logRequests)
		if g.verifier != nil {
			r.Use(auth.Middleware(g.verifier))
		}
		r.Post("/execute", g.handleExecute)
		r.Get("/status", g.handleStatus)
		r.Get("/history", g.handleHistory)
		r.Delete("/history", g.handlePruneHistory)
		r.Get("/history/{id}", g.handleGetAction)
		r.Get("/sessions", g.handleSessions)
	})

	return r
}

// logRequests logs each agent API request at debug level.
func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		g.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

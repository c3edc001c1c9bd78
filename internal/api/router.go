package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the chi router: global middleware, then the
// open monitoring endpoints, then the JWT-protected unit and stream
// routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics stay open so monitoring needs no credentials.
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/units", func(r chi.Router) {
				r.Get("/", s.handleListUnits)
				r.Post("/", s.handleCreateUnit)
				r.Get("/stats", s.handleUnitStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUnit)
					r.Patch("/", s.handleUpdateUnit)
					r.Delete("/", s.handleDeleteUnit)
					r.Get("/state", s.handleGetUnitState)
					r.Get("/overrides", s.handleListOverrides)
					r.Post("/command", s.handleUnitCommand)
				})
			})

			// WebSocket override stream (token via query parameter)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports only that the HTTP server is up. Dependency
// health lives under /metrics.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

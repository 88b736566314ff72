package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-sorter/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	clustersHandler := handlers.NewClustersHandler(s.catalog, s.index, s.namer)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Clusters
		r.Get("/clusters", clustersHandler.List)
		r.Post("/clusters", clustersHandler.Create)
		r.Get("/clusters/{id}", clustersHandler.Get)
		r.Get("/clusters/{id}/members", clustersHandler.Members)
		r.Put("/clusters/{id}/label", clustersHandler.Rename)
		r.Post("/clusters/{id}/merge", clustersHandler.Merge)
		r.Delete("/clusters/{id}", clustersHandler.Delete)
		r.Post("/clusters/{id}/suggest-label", clustersHandler.SuggestLabel)

		// Observations
		r.Get("/unclustered", clustersHandler.Unclustered)
		r.Post("/observations/{id}/move", clustersHandler.MoveMember)
		r.Post("/observations/{id}/remove", clustersHandler.RemoveMember)
		r.Get("/observations/{id}/suggestions", clustersHandler.Suggestions)
	})
}

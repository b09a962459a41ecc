package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recallhq/recall-api/internal/api"
	"github.com/recallhq/recall-api/internal/api/middleware"
)

// newRouter wires the HTTP routes.
func newRouter(sessions *api.SessionHandler, reviews *api.ReviewHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", sessions.Create)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessions.Get)
			r.Delete("/", sessions.End)
			r.Post("/flip", sessions.Flip)
			r.Post("/rate", sessions.Rate)
			r.Post("/navigate", sessions.Navigate)
		})
		r.Get("/learners/{id}/due", reviews.GetDueCards)
		r.Post("/learners/{id}/cards/{cardId}/postpone", reviews.Postpone)
	})

	return r
}

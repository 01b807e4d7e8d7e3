package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/questbot-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware квест-бота.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/", h.Index)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/credential", h.SetCredential)
			r.Post("/auto", h.SetAutoMode)

			r.Get("/status", h.Status)
			r.Get("/points", h.Points)
			r.Get("/tasks", h.Tasks)

			r.Post("/tasks/complete", h.CompleteTasks)
			r.Post("/checkin", h.DailyCheckin)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/nexoria-ledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса Nexoria.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/tournaments", h.GetTournaments)
		r.Get("/nexus/ws", h.Nexus)

		r.Route("/session", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Get("/view", h.View)
			r.Delete("/notifications/{id}", h.DismissNotification)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)
				r.Use(h.RequireSession)

				r.Post("/logout", h.Logout)
				r.Get("/user", h.CurrentUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.RequireSession)

			r.Get("/transactions", h.GetTransactions)
			r.Post("/transactions", h.CreateTransaction)
			r.Post("/tournaments/{id}/join", h.JoinTournament)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Post("/transactions/{id}/status", h.UpdateTransactionStatus)
				r.Post("/tournaments", h.CreateTournament)
				r.Post("/broadcast", h.Broadcast)
			})
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

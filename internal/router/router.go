package router

import (
	"net/http"

	"github.com/Dprinces/Award-Portal-sub002/internal/directory"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/server"
	"github.com/Dprinces/Award-Portal-sub002/internal/stats"
	"github.com/Dprinces/Award-Portal-sub002/internal/user"
	"github.com/Dprinces/Award-Portal-sub002/internal/webhook"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	User      *user.Handler
	Payment   *payment.Handler
	Stats     *stats.Handler
	Webhook   *webhook.Handler
	Directory *directory.Handler
}

func NewRouter(s *server.Server, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	mw := middleware.NewMiddlewares(s)

	// Apply middleware in order
	r.Use(middleware.RequestID)
	r.Use(mw.Tracing.NewRelicMiddleware())
	r.Use(mw.Tracing.EnhanceTracing)
	r.Use(mw.ContextEnhancer.EnhanceContext)
	r.Use(mw.Global.RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.User.Register)
			r.Get("/{id}", h.User.Get)
		})

		r.Route("/votes", func(r chi.Router) {
			r.Post("/initiate", h.Payment.InitiateVote)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/verify/{reference}", h.Payment.Verify)
		})

		// Gateway notifications: raw body, signature verified inside
		r.Post("/webhooks/{gateway}", h.Webhook.HandleWebhook)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/{id}/nominees", h.Directory.ListNominees)
		})

		r.Route("/nominees", func(r chi.Router) {
			r.Get("/{id}/stats", h.Stats.NomineeStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/payments/{id}/refund", h.Payment.Refund)
			r.Post("/payments/{id}/promote", h.Payment.Promote)
			r.Get("/payments/unpromoted", h.Payment.Unpromoted)
			r.Get("/categories/{id}/leaderboard", h.Stats.Leaderboard)
		})
	})

	return r
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func RegisterRoutes(h *HttpServer, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}).Handler)

	// Health check or default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ideas service is running"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Return from the payment page and provider events
	r.Get("/payment/callback", h.PaymentCallback)
	r.Post("/webhook/stripe", h.StripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		// Wizard drafts
		r.Post("/drafts", h.CreateDraft)
		r.Route("/drafts/{id}", func(r chi.Router) {
			r.Get("/", h.GetDraft)
			r.Delete("/", h.DeleteDraft)
			r.Patch("/fields", h.SetDraftField)
			r.Post("/next", h.NextStep)
			r.Post("/prev", h.PrevStep)
			r.Post("/markets/{kind}", h.AddMarket)
			r.Put("/markets/{kind}/{index}", h.UpdateMarket)
			r.Delete("/markets/{kind}/{index}", h.RemoveMarket)
			r.Post("/documents", h.AddDocument)
			r.Delete("/documents/{index}", h.RemoveDocument)
			r.Post("/payment", h.InitiatePayment)
		})

		// Payment routes
		r.Get("/payments", h.GetPayments)
		r.Get("/payments/{ref}", h.GetPaymentByRef)
		r.Get("/payments/{ref}/await", h.AwaitPayment)
		r.Post("/payments/{ref}/submit", h.SubmitIdea)

		// Ideas
		r.Get("/ideas", h.GetIdeas)
		r.Get("/ideas/{id}", h.GetIdeaByID)
	})

	return r
}

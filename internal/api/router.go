package api

import (
	"net/http"
	"time"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Verifier       middleware.TokenVerifier
	Observer       middleware.RequestObserver
	MetricsHandler http.Handler
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if cfg.Observer != nil {
		r.Use(middleware.Metrics(cfg.Observer))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))

		// Gateway callbacks are authenticated by their signature
		r.Route("/payments/{attemptID}", func(r chi.Router) {
			r.Post("/success", h.PaymentSucceeded)
			r.Post("/failure", h.PaymentFailed)
			r.Post("/dismiss", h.PaymentDismissed)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Verifier))

			r.Route("/checkout/sessions", func(r chi.Router) {
				r.Post("/", h.CreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetSession)
					r.Delete("/", h.AbandonSession)
					r.Put("/address", h.SelectAddress)
					r.Put("/payment-method", h.SelectPaymentMethod)
					r.Post("/submit", h.Submit)
					r.Post("/cancel", h.CancelPayment)
					r.Post("/reload", h.ReloadSession)
				})
			})

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/last", h.LastOrder)
		})
	})

	return r
}

// Package handlers udostępnia silnik wypożyczeń jako REST API w JSON.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"digilib/internal/lending"
	"digilib/internal/middleware"
	"digilib/internal/models"
	"digilib/internal/ratelimit"
	"digilib/internal/reviews"
)

// Handler obsługuje wszystkie trasy API
type Handler struct {
	engine  *lending.Engine
	reviews *reviews.Service
	logger  *slog.Logger
	clock   func() time.Time
}

// Option konfiguruje Handler
type Option func(*Handler)

// WithLogger ustawia logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithClock podmienia zegar używany do raportów (kary, przeterminowane)
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) { h.clock = clock }
}

// New tworzy handler
func New(engine *lending.Engine, rev *reviews.Service, opts ...Option) *Handler {
	h := &Handler{
		engine:  engine,
		reviews: rev,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RouterConfig to zależności routera spoza silnika
type RouterConfig struct {
	Auth       middleware.Authenticator
	Limiter    ratelimit.Limiter // nil wyłącza limit
	RateWindow time.Duration
	Metrics    http.Handler // nil wyłącza /metrics
}

// NewRouter buduje router chi z trasami publicznymi, czytelnika i bibliotekarza
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware do logowania requestów
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.Auth))
		if cfg.Limiter != nil {
			r.Use(middleware.RateLimit(cfg.Limiter, cfg.RateWindow))
		}

		// Publiczny katalog
		r.Get("/books", h.ListBooks)
		r.Get("/books/search", h.SearchBooks)
		r.Get("/books/{id}", h.ShowBook)
		r.Get("/books/{id}/reviews", h.ListBookReviews)

		// Czytelnik (wymaga logowania)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleReader))

			r.Get("/me", h.Me)
			r.Get("/me/loans", h.MyLoans)
			r.Get("/me/history", h.MyHistory)
			r.Get("/me/fines", h.MyFines)

			r.Post("/books/{id}/checkout", h.Checkout)
			r.Delete("/books/{id}/waitlist", h.LeaveWaitlist)
			r.Post("/books/{id}/reviews", h.AddReview)
			r.Post("/requests", h.SubmitRequest)
			r.Post("/reviews/{id}/like", h.LikeReview)
		})

		// Panel bibliotekarza (tylko dla adminów)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			// Zarządzanie katalogiem
			r.Post("/books", h.CreateBook)
			r.Put("/books/{id}", h.UpdateBook)
			r.Put("/books/{id}/copies", h.AdjustCopies)
			r.Get("/books/{id}/copies", h.ListCopies)
			r.Get("/books/{id}/waitlist", h.ShowWaitlist)
			r.Post("/books/{id}/waitlist/serve", h.ServeWaitlist)
			r.Get("/copies/{barcode}", h.CopyByBarcode)

			// Zarządzanie wypożyczeniami
			r.Get("/loans", h.ListLoans)
			r.Get("/loans/overdue", h.OverdueLoans)
			r.Post("/loans/{id}/checkin", h.CheckinLoan)
			r.Post("/loans/{id}/extend", h.ExtendLoan)
			r.Post("/desk/checkin", h.DeskCheckin)
			r.Post("/desk/checkout", h.DeskCheckout)
			r.Post("/holds/expire", h.ExpireHolds)

			// Prośby czytelników
			r.Get("/requests", h.ListRequests)
			r.Post("/requests/{id}/approve", h.ApproveRequest)
			r.Post("/requests/{id}/reject", h.RejectRequest)

			// Moderacja recenzji
			r.Get("/reviews", h.ListReviews)
			r.Delete("/reviews/{id}", h.DeleteReview)
		})
	})

	return r
}

package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/config"
	"github.com/growthpro/messaging/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, limiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS for the dashboard SPA
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(limiter.Middleware)

		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.SendMessage)
		r.Post("/messages/{id}/read", h.MarkMessageRead)
		r.Get("/conversations", h.ListConversations)
		r.Get("/threads", h.ListThreads)
		r.Get("/threads/{participantID}", h.GetThread)
		r.Get("/stats", h.Stats)
		r.Get("/ratelimit", h.RateLimit)
		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.ProvisionClient)
		r.Get("/ws", h.ServeWS)
	})

	return r
}

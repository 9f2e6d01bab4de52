package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"authbridge/internal/config"
	"authbridge/internal/middleware"
)

// NewRouter assembles the full middleware chain and routes. attrCfg carries
// the identity sources the Attributes middleware accepts.
func NewRouter(h *Handler, cfg *config.Config, attrCfg middleware.AttributeConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Liveness stays outside the identity requirement.
	r.Get("/healthz", h.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Attributes(attrCfg))

		r.Get("/user", h.GetUser)
		r.Get("/identities/{identityID}", h.GetIdentity)
		r.Route("/resources/{resourceID}/grants", func(r chi.Router) {
			r.Get("/", h.ListGrants)
			r.Put("/", h.ReplaceGrants)
		})
	})

	return r
}

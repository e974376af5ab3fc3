package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/honeypot/internal/middleware"
)

// RouterConfig carries the pieces needed to build the HTTP router.
type RouterConfig struct {
	Service Service
	// DB is pinged by /health; nil reports the database as disabled.
	DB          Pinger
	Feed        http.Handler
	CORSOrigins []string
	// RateLimit is skipped when nil.
	RateLimit       *middleware.RateLimiter
	MaxRequestBytes int64
}

// NewRouter builds the chi router for the service.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	NewHealthHandler(cfg.DB).RegisterHealth(r)

	if cfg.Feed != nil {
		r.Get("/ws/feed", cfg.Feed.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Middleware)
		}
		if cfg.MaxRequestBytes > 0 {
			r.Use(chiMiddleware.RequestSize(cfg.MaxRequestBytes))
		}
		NewHoneypotHandler(cfg.Service).RegisterRoutes(r)
	})

	return r
}

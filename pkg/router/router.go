package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/tendant/simple-secure/pkg/api"
	"github.com/tendant/simple-secure/pkg/client"
	"github.com/tendant/simple-secure/pkg/metrics"
	"github.com/tendant/simple-secure/pkg/session"
)

// Config holds the dependencies needed to build the HTTP handler.
type Config struct {
	API       *api.Handle
	Sessions  *session.Manager
	Directory client.Directory

	// Optional
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Ready       func(ctx context.Context) error
}

// New builds the service handler. Mount it under a prefix on the app router.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", session.HeaderName, api.TokenHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Get("/readyz", readyz(cfg.Ready))

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Verifier())
		r.Use(client.AuthPrincipalMiddleware(cfg.Directory))
		cfg.API.Routes(r)
	})
	return r
}

// SetupRoutes mounts the service handler on router at prefix.
func SetupRoutes(router chi.Router, prefix string, cfg Config) {
	if prefix == "" {
		prefix = "/"
	}
	router.Mount(prefix, New(cfg))
	slog.Info("Mounted secure routes", "prefix", prefix)
}

func readyz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Warn("Readiness check failed", "err", err)
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable"})
				return
			}
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

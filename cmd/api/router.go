package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/humanizer/humanizer/internal/config"
	"github.com/humanizer/humanizer/internal/handler"
	"github.com/humanizer/humanizer/internal/middleware"
)

type routerDeps struct {
	cfg    *config.Config
	logger *slog.Logger

	health   *handler.HealthHandler
	humanize *handler.HumanizeHandler
	history  *handler.HistoryHandler
	profile  *handler.ProfileHandler
	admin    *handler.AdminHandler

	verifier    middleware.TokenVerifier
	revocations middleware.RevocationChecker
	limiter     middleware.RateLimiter
	gatherer    prometheus.Gatherer
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg := d.cfg
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Probes and metrics (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        d.logger,
		Limiter:       d.limiter,
		UserPerMinute: cfg.HumanizeRateLimitRPM,
		UserBurst:     cfg.HumanizeRateLimitBurst,
		IPPerSecond:   cfg.IPRateLimitRPS,
		IPBurst:       cfg.IPRateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		// End-user routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{
				Logger:      d.logger,
				Verifier:    d.verifier,
				Revocations: d.revocations,
			}))

			r.Post("/profile", d.profile.Register)
			r.Get("/profile", d.profile.Get)
			r.Delete("/session", d.profile.SignOut)
			r.Get("/history", d.history.List)
			r.With(middleware.RateLimitUser(rateLimitCfg)).Post("/humanize", d.humanize.Humanize)
		})

		// Operator routes
		if cfg.AdminEnabled() {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
					Logger:    d.logger,
					TokenHash: cfg.AdminTokenHash,
				}))
				r.Put("/users/{id}/plan", d.admin.ChangePlan)
				r.Post("/credits/refill", d.admin.RefillCredits)
			})
		}
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

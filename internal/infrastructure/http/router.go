package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nabolaget/vibbobridge/internal/infrastructure/http/handlers"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/http/middleware"
)

type RouterConfig struct {
	AuthHandler   *handlers.AuthHandler
	FeedHandler   *handlers.FeedHandler
	HealthHandler *handlers.HealthHandler
	RequireToken  func(http.Handler) http.Handler // bearer auth for /feed and /orgs
	Log           zerolog.Logger
	Secure        func(http.Handler) http.Handler
	IPRateLimit   func(http.Handler) http.Handler
	Metrics       bool // expose /metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(cfg.Log))
	r.Use(chimid.Recoverer)
	if cfg.Metrics {
		r.Use(middleware.PrometheusMiddleware)
	}
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	r.Use(chimid.SetHeader("Content-Type", "application/json"))
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.ServeHTTP)
	} else {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
	}
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login/start", cfg.AuthHandler.LoginStart)
		r.Post("/login/verify", cfg.AuthHandler.LoginVerify)
		r.Post("/token", cfg.AuthHandler.Token)
		// Routes that require a bearer token once a secret is configured.
		r.Group(func(r chi.Router) {
			if cfg.RequireToken != nil {
				r.Use(cfg.RequireToken)
			}
			r.Get("/organizations", cfg.AuthHandler.Organizations)
			r.Post("/logout", cfg.AuthHandler.Logout)
		})
	})

	r.Group(func(r chi.Router) {
		if cfg.RequireToken != nil {
			r.Use(cfg.RequireToken)
		}
		r.Post("/orgs/{slug}/activate", func(w http.ResponseWriter, req *http.Request) {
			cfg.AuthHandler.ActivateOrg(w, req, chi.URLParam(req, "slug"))
		})
		if cfg.FeedHandler != nil {
			r.Get("/feed", cfg.FeedHandler.Get)
			r.Post("/feed/refresh", cfg.FeedHandler.Refresh)
		}
	})

	return r
}

func loggerMiddleware(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chimid.GetReqID(r.Context())
			log.Info().
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}

// Package api wires the chi router: middleware stack, CORS, rate limiting
// and the dataset and model routes.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/albapepper/mlb-contract-value/internal/api/docs" // OpenAPI document
	"github.com/albapepper/mlb-contract-value/internal/api/handler"
	"github.com/albapepper/mlb-contract-value/internal/cache"
	"github.com/albapepper/mlb-contract-value/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. Background work started by the middleware stops with ctx.
func NewRouter(ctx context.Context, q handler.Queries, appCache *cache.Cache[cache.Response], cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow, ctx.Done()))
	}

	// --- Handler dependencies ---
	h := handler.New(q, appCache, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI over the embedded OpenAPI document
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Dataset
		r.Get("/players", h.GetPlayers)
		r.Get("/players/{playerID}", h.GetPlayer)
		r.Get("/players/{playerID}/contracts", h.GetPlayerContracts)
		r.Get("/players/{playerID}/stats", h.GetPlayerStats)
		r.Get("/contracts/summary", h.GetContractSummary)

		// Models
		r.Get("/models/{label}/{model}", h.GetModel)
		r.Post("/predict", h.Predict)
	})

	return r
}

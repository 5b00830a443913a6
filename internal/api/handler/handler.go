// Package handler provides HTTP handlers for all API endpoints.
// Dataset handlers pass through JSON built by Postgres; model handlers read
// the saved search artifacts from disk.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/albapepper/mlb-contract-value/internal/api/respond"
	"github.com/albapepper/mlb-contract-value/internal/cache"
	"github.com/albapepper/mlb-contract-value/internal/config"
	"github.com/albapepper/mlb-contract-value/internal/db"
	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/predict"
	"github.com/albapepper/mlb-contract-value/internal/search"
)

// Queries is the read side of the published dataset. *db.Pool implements it.
type Queries interface {
	HealthCheck(ctx context.Context) error
	PlayersJSON(ctx context.Context, limit, offset int) ([]byte, error)
	PlayerJSON(ctx context.Context, playerID string) ([]byte, error)
	ContractsJSON(ctx context.Context, playerID string) ([]byte, error)
	StatsJSON(ctx context.Context, playerID, kind string, window int) ([]byte, error)
	ContractSummaryJSON(ctx context.Context) ([]byte, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	q          Queries
	cache      *cache.Cache[cache.Response]
	predictors *cache.Cache[*predict.Predictor]
	cfg        *config.Config
}

// New creates a Handler with shared dependencies.
func New(q Queries, c *cache.Cache[cache.Response], cfg *config.Config) *Handler {
	return &Handler{
		q:          q,
		cache:      c,
		predictors: cache.New[*predict.Predictor](cfg.CacheEnabled),
		cfg:        cfg,
	}
}

// Root lists what the service exposes.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	buckets := make([]string, len(features.Buckets))
	for i, b := range features.Buckets {
		buckets[i] = string(b)
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"name":     "MLB Contract Value API",
		"version":  "1.0.0",
		"datasets": []string{"players", "contracts", "batter_stats", "pitcher_stats"},
		"buckets":  buckets,
		"docs":     "/docs/index.html",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.q.HealthCheck(r.Context()); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"cache":      h.cache.Stats(),
		"predictors": h.predictors.Stats(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// cached serves key from the response cache, or runs load and caches its
// result. A load error matching db.ErrNotFound or search.ErrModelNotFound
// becomes a 404 with notFound as the message.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, notFound string, load func() ([]byte, error)) {
	if resp, ok := h.cache.Get(key); ok {
		respond.Cached(w, r, resp, ttl, true)
		return
	}

	raw, err := load()
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, search.ErrModelNotFound) {
		respond.ErrorDetail(w, http.StatusNotFound, "NOT_FOUND", notFound, err.Error())
		return
	}
	if err != nil {
		respond.ErrorDetail(w, http.StatusInternalServerError, "QUERY_FAILED", "Query failed", err.Error())
		return
	}

	resp := cache.NewResponse(raw)
	h.cache.Set(key, resp, ttl)
	respond.Cached(w, r, resp, ttl, false)
}

// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table and artifact names for the on-disk layout
// --------------------------------------------------------------------------

const (
	PlayersTable      = "players"
	ContractsTable    = "contracts"
	BatterStatsTable  = "batter_stats"
	PitcherStatsTable = "pitcher_stats"

	// TableExt is appended to every table name on disk.
	TableExt = ".csv"
	// BlobExt is appended to every serialized model and scaler.
	BlobExt = ".gob.zst"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Dataset layout
	DatasetDir      string
	ModelResultsDir string
	BestModelDir    string
	ScalerDir       string
	SearchPlanPath  string

	// Identity lookup
	RegisterPath string
	Interactive  bool

	// Scraping
	UserAgent                  string
	ScrapeDelay                time.Duration
	HTTPTimeout                time.Duration
	FanGraphsBaseURL           string
	FanGraphsRequestsPerMinute int
	BreakerFailures            int

	// Feature building
	StarterThreshold float64
	StatYearOffset   int
	StatWindows      []int

	// Model search
	SearchWorkers int

	// Database (publish only)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	windows, err := envIntList("STAT_WINDOWS", []int{3, 5, 10})
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		if w < 2 {
			return nil, fmt.Errorf("STAT_WINDOWS: window %d must be at least 2", w)
		}
	}

	threshold := envFloat("STARTER_THRESHOLD", 0.85)
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("STARTER_THRESHOLD must be in (0, 1], got %v", threshold)
	}

	return &Config{
		DatasetDir:      envOr("DATASET_DIR", "dataset"),
		ModelResultsDir: envOr("MODEL_RESULTS_DIR", "model_results"),
		BestModelDir:    envOr("BEST_MODEL_DIR", "best_model"),
		ScalerDir:       envOr("SCALER_DIR", "scalers"),
		SearchPlanPath:  envOr("SEARCH_PLAN", "search.yaml"),

		RegisterPath: envOr("REGISTER_PATH", filepath.Join("data", "register")),
		Interactive:  envBool("INTERACTIVE", false),

		UserAgent:                  envOr("HTTP_USER_AGENT", "Mozilla/5.0"),
		ScrapeDelay:                time.Duration(envInt("SCRAPE_DELAY_SECONDS", 4)) * time.Second,
		HTTPTimeout:                time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		FanGraphsBaseURL:           envOr("FANGRAPHS_BASE_URL", "https://www.fangraphs.com"),
		FanGraphsRequestsPerMinute: envInt("FANGRAPHS_REQUESTS_PER_MINUTE", 20),
		BreakerFailures:            envInt("BREAKER_FAILURES", 5),

		StarterThreshold: threshold,
		StatYearOffset:   envInt("STAT_YEAR_OFFSET", 1),
		StatWindows:      windows,

		SearchWorkers: envInt("SEARCH_WORKERS", 4),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TablePath returns the on-disk path of a dataset table.
func (c *Config) TablePath(table string) string {
	return filepath.Join(c.DatasetDir, table+TableExt)
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envIntList(key string, fallback []int) ([]int, error) {
	raw := envList(key, nil)
	if raw == nil {
		return fallback, nil
	}
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", key, s)
		}
		out = append(out, n)
	}
	return out, nil
}

// Command ingest is the MLB contract dataset CLI.
//
// Usage:
//
//	mlb-ingest contracts --start 2011 --end 2025
//	mlb-ingest stats
//	mlb-ingest cleanup --links --birth-dates
//	mlb-ingest search --plan search.yaml --override
//	mlb-ingest predict --label starting_pitcher --model lasso_regression --input WAR=4.1 --input age=29
//	mlb-ingest publish
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/mlb-contract-value/internal/config"
	"github.com/albapepper/mlb-contract-value/internal/db"
	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/identity"
	"github.com/albapepper/mlb-contract-value/internal/maintenance"
	"github.com/albapepper/mlb-contract-value/internal/predict"
	"github.com/albapepper/mlb-contract-value/internal/provider/bbref"
	"github.com/albapepper/mlb-contract-value/internal/provider/fangraphs"
	"github.com/albapepper/mlb-contract-value/internal/provider/register"
	"github.com/albapepper/mlb-contract-value/internal/provider/spotrac"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/search"
	"github.com/albapepper/mlb-contract-value/internal/seed"
	"github.com/albapepper/mlb-contract-value/internal/store"
	"github.com/albapepper/mlb-contract-value/internal/window"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "mlb-ingest",
		Short: "MLB contract dataset and model search CLI",
	}

	root.AddCommand(contractsCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(publishCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// contracts command
// --------------------------------------------------------------------------

func contractsCmd() *cobra.Command {
	var startYear, endYear int
	var interactive bool
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "Scrape contract listings and resolve player identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endYear < startYear {
				return fmt.Errorf("--end %d is before --start %d", endYear, startYear)
			}
			return run(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				reg, err := register.Load(cfg.RegisterPath)
				if err != nil {
					return fmt.Errorf("load register: %w", err)
				}
				logger.Info("Register loaded", "entries", reg.Len())

				var strategy identity.Strategy = identity.AutoFail{}
				if interactive || cfg.Interactive {
					strategy = identity.NewConsole(os.Stdin, os.Stdout)
				}
				resolver := identity.NewResolver(reg, strategy, logger)
				players, err := st.Players.Read()
				if err != nil {
					return fmt.Errorf("read players: %w", err)
				}
				logger.Info("Identity cache seeded", "players", resolver.Seed(players))

				fetcher := spotrac.NewFetcher(newWebClient(cfg, "spotrac", cfg.ScrapeDelay))
				start := time.Now()
				result := seed.SeedContracts(ctx, st, fetcher, resolver, spotrac.Sources, startYear, endYear, logger)
				return finish("Contract seed", start, result)
			})
		},
	}
	year := time.Now().Year()
	cmd.Flags().IntVar(&startYear, "start", 2011, "First contract year")
	cmd.Flags().IntVar(&endYear, "end", year, "Last contract year")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Prompt to correct or disambiguate unresolved names")
	return cmd
}

// --------------------------------------------------------------------------
// stats command
// --------------------------------------------------------------------------

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Assemble season and rolling-window stats for stored players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				reg, err := register.Load(cfg.RegisterPath)
				if err != nil {
					return fmt.Errorf("load register: %w", err)
				}
				interval := time.Minute / time.Duration(max(1, cfg.FanGraphsRequestsPerMinute))
				fg := fangraphs.NewClient(cfg.FanGraphsBaseURL, newWebClient(cfg, "fangraphs", interval), logger)
				assembler := window.NewAssembler(fg, cfg.StatWindows, logger)

				start := time.Now()
				result := seed.SeedStats(ctx, st, reg, assembler, logger)
				return finish("Stat seed", start, result)
			})
		},
	}
}

// --------------------------------------------------------------------------
// cleanup command
// --------------------------------------------------------------------------

func cleanupCmd() *cobra.Command {
	var ids, links, births bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove malformed players and backfill reference links and birth dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ids && !links && !births {
				ids, links, births = true, true, true
			}
			return run(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if ids {
					if _, err := maintenance.CleanMalformedIDs(st, logger); err != nil {
						return err
					}
				}
				if links {
					reg, err := register.Load(cfg.RegisterPath)
					if err != nil {
						return fmt.Errorf("load register: %w", err)
					}
					if _, err := maintenance.BackfillReferenceLinks(st, reg, logger); err != nil {
						return err
					}
				}
				if births {
					scraper := bbref.NewScraper(newWebClient(cfg, "bbref", cfg.ScrapeDelay))
					res, err := maintenance.BackfillBirthDates(ctx, st, scraper, logger)
					if err != nil && !errors.Is(err, web.ErrRateLimited) {
						return err
					}
					if res.RateLimited {
						logger.Warn("Birth date backfill rate limited; re-run later to continue")
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "Remove players with malformed ids")
	cmd.Flags().BoolVar(&links, "links", false, "Backfill reference links")
	cmd.Flags().BoolVar(&births, "birth-dates", false, "Backfill birth dates")
	return cmd
}

// --------------------------------------------------------------------------
// search command
// --------------------------------------------------------------------------

func searchCmd() *cobra.Command {
	var planPath, only string
	var override bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Build feature matrices and run predictor-subset searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if planPath == "" {
					planPath = cfg.SearchPlanPath
				}
				plans, err := search.LoadPlans(planPath)
				if err != nil {
					return err
				}

				ds, err := features.Load(st)
				if err != nil {
					return err
				}
				matrices, _ := features.Build(ds, features.Options{
					StarterThreshold: cfg.StarterThreshold,
					StatYearOffset:   cfg.StatYearOffset,
				}, logger)
				for _, b := range features.Buckets {
					features.FitTransform(matrices[b])
				}

				driver := search.NewDriver(cfg.ModelResultsDir, cfg.BestModelDir, cfg.SearchWorkers, nil, logger)
				refit := make(map[features.Bucket]bool)
				var failed int
				for _, p := range plans {
					if only != "" && p.Label != only {
						continue
					}
					p.Override = p.Override || override
					out, err := driver.Run(ctx, p, matrices[p.Bucket])
					if err != nil {
						if ctx.Err() != nil {
							return err
						}
						failed++
						logger.Error("Search failed", "plan", p.Name(), "error", err)
						continue
					}
					refit[p.Bucket] = refit[p.Bucket] || !out.Cached
					logger.Info("Best model", "plan", p.Name(), "cached", out.Cached,
						"predictors", out.Best.Model.Predictors, p.Select, out.Best.Metrics[p.Select])
				}
				// Bucket scalers only move together with freshly fitted models.
				for _, b := range features.Buckets {
					if !refit[b] {
						continue
					}
					if err := features.SaveScaler(cfg.ScalerDir, b, matrices[b].Scaler); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d search plans failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Search plan YAML (default SEARCH_PLAN)")
	cmd.Flags().StringVar(&only, "label", "", "Run only the plans with this label")
	cmd.Flags().BoolVar(&override, "override", false, "Recompute even when results exist")
	return cmd
}

// --------------------------------------------------------------------------
// predict command
// --------------------------------------------------------------------------

func predictCmd() *cobra.Command {
	var label, model string
	var inputs map[string]string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a contract value (millions) with a saved best model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if label == "" || model == "" {
				return fmt.Errorf("--label and --model are required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			p, err := predict.Load(cfg.BestModelDir, cfg.ScalerDir, label, model)
			if err != nil {
				return err
			}

			values := make(map[string]float64, len(inputs))
			for k, v := range inputs {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("input %s: %w", k, err)
				}
				values[k] = f
			}
			value, err := p.Predict(values)
			if err != nil {
				need := p.Predictors()
				sort.Strings(need)
				return fmt.Errorf("%w (model inputs: %v)", err, need)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", value)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Search plan label")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "Model input in natural units, name=value (repeatable)")
	return cmd
}

// --------------------------------------------------------------------------
// publish command
// --------------------------------------------------------------------------

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Mirror the dataset tables into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("DATABASE_URL is required")
				}
				pool, err := db.New(ctx, cfg)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()

				ds, err := features.Load(st)
				if err != nil {
					return err
				}
				if _, err := pool.Publish(ctx, db.Tables{
					Players:   ds.Players,
					Contracts: ds.Contracts,
					Batters:   ds.Batters,
					Pitchers:  ds.Pitchers,
				}, logger); err != nil {
					return err
				}
				return pool.RefreshViews(ctx, logger)
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, the store, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DatasetDir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	return fn(ctx, cfg, store.New(cfg.DatasetDir))
}

func newWebClient(cfg *config.Config, name string, interval time.Duration) *web.Client {
	return web.NewClient(web.Options{
		Name:            name,
		UserAgent:       cfg.UserAgent,
		Timeout:         cfg.HTTPTimeout,
		Interval:        interval,
		BreakerFailures: cfg.BreakerFailures,
	}, logger)
}

// finish logs a seed result. Per-row problems are logged, not returned.
func finish(what string, start time.Time, result seed.SeedResult) error {
	logger.Info(what+" finished", "duration", time.Since(start).Round(time.Second), "summary", result.Summary())
	for _, e := range result.Errors {
		logger.Error("seed error", "error", e)
	}
	if result.RateLimited {
		logger.Warn(what + " stopped by rate limiting; collected records were saved, re-run to continue")
	}
	return nil
}

// Package db provides a pgxpool-based connection pool with prepared statement
// registration, the dataset schema, publishing from the on-disk tables and
// the JSON queries the API serves.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/mlb-contract-value/internal/config"
)

// ErrNotFound is returned by JSON queries that match nothing.
var ErrNotFound = errors.New("not found")

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// The API statements reference the dataset tables.
	if err := ensureSchema(ctx, poolCfg.ConnConfig); err != nil {
		return nil, err
	}

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API layer uses.
// Postgres builds the JSON bodies; handlers pass the bytes through.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// API: players
		"api_players": `
			SELECT COALESCE(json_agg(row_to_json(p) ORDER BY p.last_name, p.first_name), '[]'::json)
			FROM (SELECT * FROM players ORDER BY last_name, first_name LIMIT $1 OFFSET $2) p`,
		"api_player": "SELECT row_to_json(p) FROM players p WHERE p.player_id = $1",

		// API: contracts
		"api_player_contracts": `
			SELECT COALESCE(json_agg(row_to_json(c) ORDER BY c.year), '[]'::json)
			FROM contracts c WHERE c.player_id = $1`,

		// API: stats
		"api_player_stats": `
			SELECT COALESCE(json_agg(json_build_object(
				'year', s.year, 'window_years', s.window_years, 'stats', s.stats) ORDER BY s.year, s.window_years), '[]'::json)
			FROM player_stats s
			WHERE s.player_id = $1 AND s.kind = $2 AND ($3::int = 0 OR s.window_years = $3::int)`,

		// API: contract value summary (materialized view)
		"api_contract_summary": "SELECT COALESCE(json_agg(row_to_json(v) ORDER BY v.year, v.type), '[]'::json) FROM mv_contract_summary v",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// JSON queries (Postgres builds the response body)
// --------------------------------------------------------------------------

// PlayersJSON returns one page of players ordered by name.
func (p *Pool) PlayersJSON(ctx context.Context, limit, offset int) ([]byte, error) {
	return p.jsonRow(ctx, "api_players", limit, offset)
}

// PlayerJSON returns one player.
func (p *Pool) PlayerJSON(ctx context.Context, playerID string) ([]byte, error) {
	return p.jsonRow(ctx, "api_player", playerID)
}

// ContractSummaryJSON returns per-year, per-type contract value aggregates.
func (p *Pool) ContractSummaryJSON(ctx context.Context) ([]byte, error) {
	return p.jsonRow(ctx, "api_contract_summary")
}

// ContractsJSON returns a player's contracts ordered by year.
func (p *Pool) ContractsJSON(ctx context.Context, playerID string) ([]byte, error) {
	return p.jsonRow(ctx, "api_player_contracts", playerID)
}

// StatsJSON returns a player's stat records of one kind; window 0 means all
// windows.
func (p *Pool) StatsJSON(ctx context.Context, playerID, kind string, window int) ([]byte, error) {
	return p.jsonRow(ctx, "api_player_stats", playerID, kind, window)
}

func (p *Pool) jsonRow(ctx context.Context, stmt string, args ...any) ([]byte, error) {
	var data []byte
	err := p.QueryRow(ctx, stmt, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && data == nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	return data, nil
}

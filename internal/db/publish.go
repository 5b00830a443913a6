package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/mlb-contract-value/internal/config"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

// batchSize bounds the statements queued per round trip.
const batchSize = 500

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ` + config.PlayersTable + ` (
	player_id               TEXT PRIMARY KEY,
	fangraphs_id            INTEGER NOT NULL,
	first_name              TEXT NOT NULL,
	last_name               TEXT NOT NULL,
	position                TEXT,
	birth_date              DATE,
	spotrac_link            TEXT,
	baseball_reference_link TEXT,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ` + config.ContractsTable + ` (
	contract_id  TEXT PRIMARY KEY,
	player_id    TEXT NOT NULL REFERENCES ` + config.PlayersTable + ` (player_id) ON DELETE CASCADE,
	age          INTEGER,
	service_time DOUBLE PRECISION,
	year         INTEGER NOT NULL,
	duration     INTEGER NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	type         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS contracts_player_idx ON ` + config.ContractsTable + ` (player_id);

CREATE TABLE IF NOT EXISTS player_stats (
	player_id    TEXT NOT NULL REFERENCES ` + config.PlayersTable + ` (player_id) ON DELETE CASCADE,
	kind         TEXT NOT NULL,
	year         INTEGER NOT NULL,
	window_years INTEGER NOT NULL,
	stats        JSONB NOT NULL,
	PRIMARY KEY (player_id, kind, year, window_years)
);

CREATE MATERIALIZED VIEW IF NOT EXISTS mv_contract_summary AS
	SELECT year, type,
	       COUNT(*)                  AS contracts,
	       SUM(value)                AS total_value,
	       AVG(value / GREATEST(duration, 1)) AS avg_aav
	FROM ` + config.ContractsTable + `
	GROUP BY year, type;
CREATE UNIQUE INDEX IF NOT EXISTS mv_contract_summary_key ON mv_contract_summary (year, type);
`

// ensureSchema creates the dataset tables on a dedicated connection.
func ensureSchema(ctx context.Context, cfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect for schema: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Publishing
// --------------------------------------------------------------------------

// PublishResult counts the rows each table accepted.
type PublishResult struct {
	Players   int64
	Contracts int64
	Stats     int64
}

// Tables is the content of the on-disk tables to publish.
type Tables struct {
	Players   []record.Player
	Contracts []record.Contract
	Batters   []record.BatterStats
	Pitchers  []record.PitcherStats
}

// Publish mirrors the tables into Postgres. Players are upserted with
// backfill semantics (a stored value is only replaced by a non-null one);
// contracts and stats are insert-only, like the on-disk tables.
func (p *Pool) Publish(ctx context.Context, t Tables, logger *slog.Logger) (PublishResult, error) {
	var res PublishResult
	start := time.Now()

	b := &batcher{pool: p}
	for _, pl := range t.Players {
		b.queue(ctx, &res.Players, `
			INSERT INTO `+config.PlayersTable+` (
				player_id, fangraphs_id, first_name, last_name, position,
				birth_date, spotrac_link, baseball_reference_link
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (player_id) DO UPDATE SET
				fangraphs_id = EXCLUDED.fangraphs_id,
				position = COALESCE(EXCLUDED.position, `+config.PlayersTable+`.position),
				birth_date = COALESCE(EXCLUDED.birth_date, `+config.PlayersTable+`.birth_date),
				spotrac_link = COALESCE(EXCLUDED.spotrac_link, `+config.PlayersTable+`.spotrac_link),
				baseball_reference_link = COALESCE(EXCLUDED.baseball_reference_link, `+config.PlayersTable+`.baseball_reference_link),
				updated_at = NOW()`,
			pl.PlayerID, pl.FangraphsID, pl.FirstName, pl.LastName, nilEmpty(pl.Position),
			pl.BirthDate, pl.SpotracLink, pl.BaseballReferenceLink,
		)
	}
	if err := b.flush(ctx); err != nil {
		return res, fmt.Errorf("publish players: %w", err)
	}

	for _, c := range t.Contracts {
		b.queue(ctx, &res.Contracts, `
			INSERT INTO `+config.ContractsTable+` (
				contract_id, player_id, age, service_time, year, duration, value, type
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (contract_id) DO NOTHING`,
			c.ContractID, c.PlayerID, c.Age, c.ServiceTime, c.Year, c.Duration, c.Value, string(c.Type),
		)
	}
	if err := b.flush(ctx); err != nil {
		return res, fmt.Errorf("publish contracts: %w", err)
	}

	for _, s := range t.Batters {
		queueStats(ctx, b, &res.Stats, record.Batting, s.PlayerID, s.Year, s.WindowYears, StatsMap(s))
	}
	for _, s := range t.Pitchers {
		queueStats(ctx, b, &res.Stats, record.Pitching, s.PlayerID, s.Year, s.WindowYears, StatsMap(s))
	}
	if err := b.flush(ctx); err != nil {
		return res, fmt.Errorf("publish stats: %w", err)
	}

	logger.Info("Published dataset",
		"players", res.Players, "contracts", res.Contracts, "stats", res.Stats,
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func queueStats(ctx context.Context, b *batcher, n *int64, kind record.StatKind, playerID string, year, window int, stats map[string]float64) {
	b.queue(ctx, n, `
		INSERT INTO player_stats (player_id, kind, year, window_years, stats)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (player_id, kind, year, window_years) DO NOTHING`,
		playerID, string(kind), year, window, stats,
	)
}

// StatsMap returns the present stat columns of a record. Absent columns are
// left out of the JSON document rather than stored as zero.
func StatsMap[T any](s T) map[string]float64 {
	cols := record.SchemaOf[T]().FeatureColumns()
	out := make(map[string]float64, len(cols))
	for _, name := range cols {
		if v, ok := record.Value(s, name); ok {
			out[name] = v
		}
	}
	return out
}

// batcher queues statements and sends them batchSize at a time, adding
// each statement's affected rows to its counter.
type batcher struct {
	pool     *Pool
	batch    pgx.Batch
	counters []*int64
	err      error
}

func (b *batcher) queue(ctx context.Context, n *int64, sql string, args ...any) {
	if b.err != nil {
		return
	}
	b.batch.Queue(sql, args...)
	b.counters = append(b.counters, n)
	if b.batch.Len() >= batchSize {
		b.err = b.send(ctx)
	}
}

func (b *batcher) flush(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if b.batch.Len() == 0 {
		return nil
	}
	return b.send(ctx)
}

func (b *batcher) send(ctx context.Context) error {
	br := b.pool.SendBatch(ctx, &b.batch)
	var err error
	for _, n := range b.counters {
		tag, execErr := br.Exec()
		if execErr != nil {
			err = execErr
			break
		}
		*n += tag.RowsAffected()
	}
	if cerr := br.Close(); err == nil {
		err = cerr
	}
	b.batch = pgx.Batch{}
	b.counters = b.counters[:0]
	return err
}

func nilEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --------------------------------------------------------------------------
// Materialized views
// --------------------------------------------------------------------------

// RefreshViews refreshes the materialized views after a publish. Uses
// CONCURRENTLY so API reads are not blocked.
func (p *Pool) RefreshViews(ctx context.Context, logger *slog.Logger) error {
	views := []string{
		"mv_contract_summary",
	}

	for _, v := range views {
		start := time.Now()
		_, err := p.Exec(ctx, fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %s", v))
		dur := time.Since(start).Round(time.Millisecond)

		if err != nil {
			logger.Warn("Failed to refresh materialized view",
				"view", v, "duration", dur, "error", err)
			return fmt.Errorf("refresh %s: %w", v, err)
		}
		logger.Info("Refreshed materialized view", "view", v, "duration", dur)
	}
	return nil
}

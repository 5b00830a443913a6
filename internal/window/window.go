// Package window assembles per-season and trailing-window stat records for
// one player's career.
package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

// DefaultSizes are the trailing window lengths, in seasons.
var DefaultSizes = []int{3, 5, 10}

// StatsSource is the season and ranged stat lookup, filtered by FanGraphs id.
type StatsSource interface {
	Season(ctx context.Context, kind record.StatKind, fangraphsID, year int) (map[string]float64, bool, error)
	Range(ctx context.Context, kind record.StatKind, fangraphsID, start, end int) (map[string]float64, bool, error)
}

// Target is the player whose career is assembled.
type Target struct {
	PlayerID    string
	FangraphsID int
	StartYear   int
	EndYear     int
}

// Span is one trailing window to look up.
type Span struct {
	Year  int // last season of the window
	Size  int
	Start int // first season actually covered
}

// Spans lists the windows emitted for a career. A window of size w ending
// at year is kept only when year-w+1 >= startYear and its start is strictly
// before year.
func Spans(startYear, endYear int, sizes []int) []Span {
	var out []Span
	for year := startYear; year <= endYear; year++ {
		for _, w := range sizes {
			implied := year - w + 1
			if implied < startYear {
				continue
			}
			start := max(startYear, implied)
			if start >= year {
				continue
			}
			out = append(out, Span{Year: year, Size: w, Start: start})
		}
	}
	return out
}

// Result holds the records built for one target.
type Result struct {
	Batters  []record.BatterStats
	Pitchers []record.PitcherStats
	Failures int // lookups that failed and were skipped
}

// Assembler builds stat records from a StatsSource.
type Assembler struct {
	source StatsSource
	sizes  []int
	logger *slog.Logger
}

// NewAssembler creates an assembler. Empty sizes fall back to DefaultSizes.
func NewAssembler(source StatsSource, sizes []int, logger *slog.Logger) *Assembler {
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	return &Assembler{source: source, sizes: sizes, logger: logger}
}

// Assemble runs both phases for t: one record per season with stats, then
// one record per qualifying trailing window. Failed lookups are logged and
// skipped. A rate-limited or cancelled lookup stops the assembly; the
// records built so far are returned with the error.
func (a *Assembler) Assemble(ctx context.Context, t Target) (Result, error) {
	var res Result
	if t.FangraphsID <= 0 {
		return res, fmt.Errorf("player %s has no fangraphs id", t.PlayerID)
	}
	if t.StartYear <= 0 || t.EndYear < t.StartYear {
		return res, fmt.Errorf("player %s has invalid career span %d-%d", t.PlayerID, t.StartYear, t.EndYear)
	}

	// Phase A: single seasons
	for year := t.StartYear; year <= t.EndYear; year++ {
		for _, kind := range []record.StatKind{record.Batting, record.Pitching} {
			values, found, err := a.source.Season(ctx, kind, t.FangraphsID, year)
			if stop := a.failed(&res, err, t, kind, year, year); stop != nil {
				return res, stop
			}
			if err == nil && found {
				res.add(kind, t.PlayerID, year, 1, values)
			}
		}
	}

	// Phase B: trailing windows
	for _, span := range Spans(t.StartYear, t.EndYear, a.sizes) {
		for _, kind := range []record.StatKind{record.Batting, record.Pitching} {
			values, found, err := a.source.Range(ctx, kind, t.FangraphsID, span.Start, span.Year)
			if stop := a.failed(&res, err, t, kind, span.Start, span.Year); stop != nil {
				return res, stop
			}
			if err == nil && found {
				res.add(kind, t.PlayerID, span.Year, span.Size, values)
			}
		}
	}
	return res, nil
}

// failed logs a lookup error and returns it when the assembly must stop.
func (a *Assembler) failed(res *Result, err error, t Target, kind record.StatKind, start, end int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, web.ErrRateLimited) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	res.Failures++
	a.logger.Warn("Stat lookup failed",
		"player_id", t.PlayerID, "kind", string(kind), "start", start, "end", end, "error", err)
	return nil
}

func (r *Result) add(kind record.StatKind, playerID string, year, size int, values map[string]float64) {
	switch kind {
	case record.Batting:
		s := record.BatterStats{PlayerID: playerID, Year: year, WindowYears: size}
		record.SetValues(&s, values)
		r.Batters = append(r.Batters, s)
	case record.Pitching:
		s := record.PitcherStats{PlayerID: playerID, Year: year, WindowYears: size}
		record.SetValues(&s, values)
		r.Pitchers = append(r.Pitchers, s)
	}
}

// Package features joins contracts with the stat line of the season before
// them, splits the result into role buckets and min-max scales it.
package features

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/albapepper/mlb-contract-value/internal/record"
	"github.com/albapepper/mlb-contract-value/internal/store"
)

// Bucket names a role partition of the feature rows.
type Bucket string

const (
	StartingPitcher Bucket = "starting_pitcher"
	ReliefPitcher   Bucket = "relief_pitcher"
	PositionPlayer  Bucket = "position_player"
)

// Buckets lists every bucket in a fixed order.
var Buckets = []Bucket{StartingPitcher, ReliefPitcher, PositionPlayer}

// ParseBucket accepts a bucket name.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// Role is the stat table a position code joins against.
type Role int

const (
	Excluded Role = iota
	Batting
	Pitching
)

var pitcherCodes = map[string]bool{
	"rhp-s": true, "lhp-s": true, "rhp-c": true, "lhp-c": true,
	"rhp": true, "lhp": true, "sp": true, "rp": true, "p": true,
}

// Classify maps a listing position code to a role. Codes carrying a
// pitcher marker without being a known pitcher code, and two-way players,
// are Excluded.
func Classify(position string) Role {
	code := strings.ToLower(strings.TrimSpace(position))
	switch {
	case code == "":
		return Excluded
	case pitcherCodes[code]:
		return Pitching
	case strings.Contains(code, "lhp"), strings.Contains(code, "rhp"), code == "twp":
		return Excluded
	default:
		return Batting
	}
}

// IsStarter reports whether a pitcher with g games and gs games started is
// a starter under threshold t. A pitcher missing either count is a reliever.
func IsStarter(gs, g *float64, t float64) bool {
	if gs == nil || g == nil {
		return false
	}
	return *gs >= t*(*g)
}

// --------------------------------------------------------------------------
// Matrix
// --------------------------------------------------------------------------

// Matrix is a dense feature table. Absent values are NaN.
type Matrix struct {
	Bucket  Bucket
	Columns []string
	Keys    []string // contract id of each row
	Rows    [][]float64
	Scaler  *MinMaxScaler // set by FitTransform, nil while unscaled
}

// Index returns the position of a column.
func (m *Matrix) Index(name string) (int, bool) {
	for i, c := range m.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns a copy of one column.
func (m *Matrix) Column(name string) ([]float64, error) {
	i, ok := m.Index(name)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", m.Bucket, name)
	}
	out := make([]float64, len(m.Rows))
	for r, row := range m.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.Rows) }

// --------------------------------------------------------------------------
// Build
// --------------------------------------------------------------------------

// Dataset is the in-memory copy of the stored tables.
type Dataset struct {
	Players   []record.Player
	Contracts []record.Contract
	Batters   []record.BatterStats
	Pitchers  []record.PitcherStats
}

// Load reads every table of a store.
func Load(st *store.Store) (Dataset, error) {
	var ds Dataset
	var err error
	if ds.Players, err = st.Players.Read(); err != nil {
		return ds, fmt.Errorf("read players: %w", err)
	}
	if ds.Contracts, err = st.Contracts.Read(); err != nil {
		return ds, fmt.Errorf("read contracts: %w", err)
	}
	if ds.Batters, err = st.Batters.Read(); err != nil {
		return ds, fmt.Errorf("read batter stats: %w", err)
	}
	if ds.Pitchers, err = st.Pitchers.Read(); err != nil {
		return ds, fmt.Errorf("read pitcher stats: %w", err)
	}
	return ds, nil
}

// Options controls the join and the role split.
type Options struct {
	StarterThreshold float64
	StatYearOffset   int
}

// Report counts the contracts that did not reach a bucket.
type Report struct {
	Joined       int
	Excluded     int // two-way or ambiguous position code
	NoPlayer     int
	MissingStats int
}

// Columns returns the feature columns of a bucket: contract columns first,
// then the stat columns of the bucket's role.
func Columns(b Bucket) []string {
	cols := record.SchemaOf[record.Contract]().FeatureColumns()
	if b == PositionPlayer {
		return append(cols, record.SchemaOf[record.BatterStats]().FeatureColumns()...)
	}
	return append(cols, record.SchemaOf[record.PitcherStats]().FeatureColumns()...)
}

// ContractValues returns the contract part of a feature row. Service time
// is normalized to fractional years.
func ContractValues(c record.Contract) []float64 {
	cols := record.SchemaOf[record.Contract]().FeatureColumns()
	vals := record.Values(c, cols)
	for i, name := range cols {
		if name == "service_time" && !math.IsNaN(vals[i]) {
			vals[i] = record.NormalizeServiceTime(vals[i])
		}
	}
	return vals
}

// Build joins each contract with the window-1 stat record of season
// year-StatYearOffset and returns one unscaled matrix per bucket.
func Build(ds Dataset, opts Options, logger *slog.Logger) (map[Bucket]*Matrix, Report) {
	var rep Report

	players := store.Index(ds.Players)
	batters := make(map[string]record.BatterStats, len(ds.Batters))
	for _, s := range ds.Batters {
		if s.WindowYears == 1 {
			batters[s.Key()] = s
		}
	}
	pitchers := make(map[string]record.PitcherStats, len(ds.Pitchers))
	for _, s := range ds.Pitchers {
		if s.WindowYears == 1 {
			pitchers[s.Key()] = s
		}
	}

	out := make(map[Bucket]*Matrix, len(Buckets))
	for _, b := range Buckets {
		out[b] = &Matrix{Bucket: b, Columns: Columns(b)}
	}
	add := func(b Bucket, c record.Contract, stats []float64) {
		m := out[b]
		m.Keys = append(m.Keys, c.ContractID)
		m.Rows = append(m.Rows, append(ContractValues(c), stats...))
		rep.Joined++
	}

	for _, c := range ds.Contracts {
		p, ok := players[c.PlayerID]
		if !ok {
			rep.NoPlayer++
			continue
		}
		key := record.StatKey(c.PlayerID, c.Year-opts.StatYearOffset, 1)

		switch Classify(p.Position) {
		case Batting:
			s, ok := batters[key]
			if !ok {
				rep.MissingStats++
				continue
			}
			add(PositionPlayer, c, record.Values(s, record.SchemaOf[record.BatterStats]().FeatureColumns()))
		case Pitching:
			s, ok := pitchers[key]
			if !ok {
				rep.MissingStats++
				continue
			}
			b := ReliefPitcher
			if IsStarter(s.GS, s.G, opts.StarterThreshold) {
				b = StartingPitcher
			}
			add(b, c, record.Values(s, record.SchemaOf[record.PitcherStats]().FeatureColumns()))
		default:
			rep.Excluded++
			logger.Debug("Contract excluded by position", "contract_id", c.ContractID, "position", p.Position)
		}
	}

	logger.Info("Feature rows built",
		"starting_pitcher", out[StartingPitcher].Len(),
		"relief_pitcher", out[ReliefPitcher].Len(),
		"position_player", out[PositionPlayer].Len(),
		"excluded", rep.Excluded, "missing_stats", rep.MissingStats, "no_player", rep.NoPlayer)
	return out, rep
}

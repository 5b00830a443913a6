package features

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mlb-contract-value/internal/record"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	cases := map[string]Role{
		"SP":     Pitching,
		"rp":     Pitching,
		"RHP-S":  Pitching,
		"lhp-c":  Pitching,
		"P":      Pitching,
		"C":      Batting,
		"SS":     Batting,
		"DH":     Batting,
		"TWP":    Excluded,
		"RHP/1B": Excluded,
		"":       Excluded,
	}
	for pos, want := range cases {
		assert.Equal(t, want, Classify(pos), pos)
	}
}

func TestIsStarter(t *testing.T) {
	assert.False(t, IsStarter(f(2), f(60), 0.85), "60*0.85=51 > 2")
	assert.True(t, IsStarter(f(29), f(30), 0.85), "30*0.85=25.5 <= 29")
	assert.True(t, IsStarter(f(17), f(20), 0.85), "boundary is inclusive")
	assert.False(t, IsStarter(nil, f(30), 0.85))
	assert.False(t, IsStarter(f(30), nil, 0.85))
}

func TestBuild_PitchersSplitExactly(t *testing.T) {
	const threshold = 0.85
	var ds Dataset
	wantStarter := make(map[string]bool)
	n := 0
	for g := 0.0; g <= 12; g++ {
		for gs := 0.0; gs <= g; gs++ {
			n++
			id := fmt.Sprintf("p_%d", n)
			ds.Players = append(ds.Players, record.Player{PlayerID: id, Position: "RHP"})
			ds.Contracts = append(ds.Contracts, record.Contract{ContractID: id + "_2025", PlayerID: id, Year: 2025, Duration: 1, Value: 1})
			stat := record.PitcherStats{PlayerID: id, Year: 2024, WindowYears: 1, G: f(g), GS: f(gs)}
			switch n % 7 {
			case 3:
				stat.GS = nil
			case 5:
				stat.G = nil
			}
			ds.Pitchers = append(ds.Pitchers, stat)
			wantStarter[id+"_2025"] = stat.G != nil && stat.GS != nil && gs >= threshold*g
		}
	}
	ds.Players = append(ds.Players, record.Player{PlayerID: "b_1", Position: "1B"}, record.Player{PlayerID: "x_1", Position: "TWP"})
	ds.Contracts = append(ds.Contracts,
		record.Contract{ContractID: "b_1_2025", PlayerID: "b_1", Year: 2025, Duration: 1, Value: 1},
		record.Contract{ContractID: "x_1_2025", PlayerID: "x_1", Year: 2025, Duration: 1, Value: 1},
		record.Contract{ContractID: "p_1_2030", PlayerID: "p_1", Year: 2030, Duration: 1, Value: 1})
	ds.Batters = append(ds.Batters, record.BatterStats{PlayerID: "b_1", Year: 2024, WindowYears: 1})

	ms, rep := Build(ds, Options{StarterThreshold: threshold, StatYearOffset: 1}, discard())

	sp, rp, pp := ms[StartingPitcher], ms[ReliefPitcher], ms[PositionPlayer]
	assert.Equal(t, n, sp.Len()+rp.Len(), "every pitching contract with a stat row lands in one pitcher bucket")
	assert.Equal(t, rep.Joined, sp.Len()+rp.Len()+pp.Len())
	assert.Equal(t, len(ds.Contracts), rep.Joined+rep.Excluded+rep.MissingStats+rep.NoPlayer)

	seen := make(map[string]Bucket)
	for _, m := range []*Matrix{sp, rp} {
		for _, k := range m.Keys {
			_, dup := seen[k]
			require.False(t, dup, "%s in two buckets", k)
			seen[k] = m.Bucket
		}
	}
	for id, starter := range wantStarter {
		want := ReliefPitcher
		if starter {
			want = StartingPitcher
		}
		assert.Equal(t, want, seen[id], id)
	}
}

func dataset() Dataset {
	age := 27
	st := 3.045
	return Dataset{
		Players: []record.Player{
			{PlayerID: "skubal_1", Position: "SP"},
			{PlayerID: "clase_2", Position: "RP"},
			{PlayerID: "soto_3", Position: "RF"},
			{PlayerID: "ohtani_4", Position: "TWP"},
			{PlayerID: "judge_5", Position: "RF"},
		},
		Contracts: []record.Contract{
			{ContractID: "skubal_1_2025", PlayerID: "skubal_1", Age: &age, ServiceTime: &st, Year: 2025, Duration: 1, Value: 10.15, Type: record.Arb},
			{ContractID: "clase_2_2025", PlayerID: "clase_2", Year: 2025, Duration: 1, Value: 4, Type: record.Arb},
			{ContractID: "soto_3_2025", PlayerID: "soto_3", Year: 2025, Duration: 15, Value: 765, Type: record.FreeAgent},
			{ContractID: "ohtani_4_2024", PlayerID: "ohtani_4", Year: 2024, Duration: 10, Value: 700, Type: record.FreeAgent},
			{ContractID: "judge_5_2023", PlayerID: "judge_5", Year: 2023, Duration: 9, Value: 360, Type: record.FreeAgent},
			{ContractID: "ghost_9_2023", PlayerID: "ghost_9", Year: 2023, Duration: 1, Value: 1, Type: record.PreArb},
		},
		Batters: []record.BatterStats{
			{PlayerID: "soto_3", Year: 2024, WindowYears: 1, HR: f(41)},
			{PlayerID: "soto_3", Year: 2024, WindowYears: 3, HR: f(100)},
			{PlayerID: "judge_5", Year: 2021, WindowYears: 1, HR: f(39)},
		},
		Pitchers: []record.PitcherStats{
			{PlayerID: "skubal_1", Year: 2024, WindowYears: 1, G: f(31), GS: f(31), ERA: f(2.39)},
			{PlayerID: "clase_2", Year: 2024, WindowYears: 1, G: f(74), GS: f(0)},
		},
	}
}

func TestBuild(t *testing.T) {
	ms, rep := Build(dataset(), Options{StarterThreshold: 0.85, StatYearOffset: 1}, discard())

	assert.Equal(t, 3, rep.Joined)
	assert.Equal(t, 1, rep.Excluded)
	assert.Equal(t, 1, rep.MissingStats, "judge has no 2022 season")
	assert.Equal(t, 1, rep.NoPlayer)

	sp := ms[StartingPitcher]
	require.Equal(t, 1, sp.Len())
	assert.Equal(t, []string{"skubal_1_2025"}, sp.Keys)
	assert.Equal(t, []string{"clase_2_2025"}, ms[ReliefPitcher].Keys)

	pp := ms[PositionPlayer]
	require.Equal(t, 1, pp.Len())
	hr, err := pp.Column("HR")
	require.NoError(t, err)
	assert.Equal(t, []float64{41}, hr, "window-1 record only")

	era, err := sp.Column("ERA")
	require.NoError(t, err)
	assert.Equal(t, 2.39, era[0])

	svc, err := sp.Column("service_time")
	require.NoError(t, err)
	assert.InDelta(t, 3+45.0/172, svc[0], 1e-9)

	age, err := ms[ReliefPitcher].Column("age")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(age[0]), "absent age stays absent")

	_, err = pp.Column("ERA")
	assert.Error(t, err)
}

func TestColumns(t *testing.T) {
	cols := Columns(PositionPlayer)
	assert.Equal(t, []string{"age", "service_time", "year", "duration", "value"}, cols[:5])
	assert.Contains(t, cols, "wRC+")
	assert.NotContains(t, cols, "window_years")
	assert.Contains(t, Columns(StartingPitcher), "FIP")
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("relief_pitcher")
	require.NoError(t, err)
	assert.Equal(t, ReliefPitcher, b)
	_, err = ParseBucket("closer")
	assert.Error(t, err)
}

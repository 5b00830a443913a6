package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mlb-contract-value/internal/extract"
	"github.com/albapepper/mlb-contract-value/internal/identity"
	"github.com/albapepper/mlb-contract-value/internal/provider/spotrac"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
	"github.com/albapepper/mlb-contract-value/internal/store"
	"github.com/albapepper/mlb-contract-value/internal/window"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeFetcher struct {
	tables map[string]extract.Table
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchTable(_ context.Context, url string) (extract.Table, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return extract.Table{}, err
	}
	return f.tables[url], nil
}

type fakeResolver struct {
	ids map[string]identity.Identity
}

func (f *fakeResolver) Resolve(_ context.Context, name, link string, _ int) (identity.Identity, error) {
	id, ok := f.ids[name]
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: %s", identity.ErrUnresolved, name)
	}
	return id, nil
}

func testSources(year int) []spotrac.Source {
	return []spotrac.Source{
		{Name: "arb", URL: fmt.Sprintf("arb/%d", year), Type: record.Arb},
		{Name: "free-agent", URL: fmt.Sprintf("fa/%d", year), Type: record.FreeAgent},
	}
}

func listing(rows ...[]extract.Cell) extract.Table {
	return extract.Table{Header: []string{"Player", "Pos", "Age", "Yrs", "Value"}, Rows: rows}
}

func row(name, link, pos, age, yrs, value string) []extract.Cell {
	return []extract.Cell{{Text: name, Href: link}, {Text: pos}, {Text: age}, {Text: yrs}, {Text: value}}
}

func TestSeedContracts(t *testing.T) {
	st := store.New(t.TempDir())
	fetcher := &fakeFetcher{
		tables: map[string]extract.Table{
			"arb/2024": listing(
				row("Tarik Skubal", "/p/1", "SP", "27", "1", "$2,650,000"),
				row("Nobody Known", "/p/2", "RP", "25", "1", "$1,000,000"),
				row("Skip Me", "/p/3", "C", "30", "1", "N/A"),
			),
			"fa/2024":  listing(row("Juan Soto", "/p/4", "RF", "26", "15", "$765,000,000")),
			"arb/2025": listing(row("Tarik Skubal", "/p/1", "SP", "28", "1", "$10,150,000")),
		},
		errs: map[string]error{"fa/2025": fmt.Errorf("x: %w", web.ErrUnavailable)},
	}
	resolver := &fakeResolver{ids: map[string]identity.Identity{
		"Tarik Skubal": {PlayerID: "Skubal_1", FangraphsID: 22267, FirstName: "Tarik", LastName: "Skubal", BbrefID: "skubata01"},
		"Juan Soto":    {PlayerID: "Soto_4", FangraphsID: 20123, FirstName: "Juan", LastName: "Soto", LowConfidence: true},
	}}

	res := SeedContracts(context.Background(), st, fetcher, resolver, testSources, 2024, 2025, discard())
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.PlayersWritten)
	assert.Equal(t, 3, res.ContractsWritten)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, 1, res.RowsSkipped)
	assert.Equal(t, 1, res.LowConfidence)
	assert.Equal(t, 1, res.PagesUnavailable)
	assert.False(t, res.RateLimited)

	contracts, err := st.Contracts.Read()
	require.NoError(t, err)
	byID := store.Index(contracts)
	soto := byID["Soto_4_2024"]
	assert.Equal(t, 765.0, soto.Value)
	assert.Equal(t, 15, soto.Duration)
	assert.Equal(t, record.FreeAgent, soto.Type)
	assert.Equal(t, 51.0, soto.AAV())
	assert.Equal(t, 10.15, byID["Skubal_1_2025"].Value)

	players, err := st.Players.Read()
	require.NoError(t, err)
	byPlayer := store.Index(players)
	require.NotNil(t, byPlayer["Skubal_1"].BaseballReferenceLink)
	assert.Equal(t, "https://www.baseball-reference.com/players/s/skubata01.shtml", *byPlayer["Skubal_1"].BaseballReferenceLink)
	assert.Nil(t, byPlayer["Soto_4"].BaseballReferenceLink)
	assert.Equal(t, "/p/4", *byPlayer["Soto_4"].SpotracLink)

	// re-running is idempotent
	again := SeedContracts(context.Background(), st, fetcher, resolver, testSources, 2024, 2025, discard())
	assert.Zero(t, again.ContractsWritten)
	assert.Zero(t, again.PlayersWritten)
}

func TestSeedContracts_RateLimitPersistsAndStops(t *testing.T) {
	st := store.New(t.TempDir())
	fetcher := &fakeFetcher{
		tables: map[string]extract.Table{
			"arb/2024": listing(row("Tarik Skubal", "/p/1", "SP", "27", "1", "$2,650,000")),
		},
		errs: map[string]error{"fa/2024": fmt.Errorf("x: %w", web.ErrRateLimited)},
	}
	resolver := &fakeResolver{ids: map[string]identity.Identity{
		"Tarik Skubal": {PlayerID: "Skubal_1", FangraphsID: 22267},
	}}

	res := SeedContracts(context.Background(), st, fetcher, resolver, testSources, 2024, 2026, discard())
	assert.True(t, res.RateLimited)
	assert.Equal(t, 1, res.ContractsWritten)
	assert.Equal(t, []string{"arb/2024", "fa/2024"}, fetcher.calls, "later seasons are not fetched")
}

type fakeCareers map[int][2]int

func (f fakeCareers) Career(id int) (int, int, bool) {
	c, ok := f[id]
	return c[0], c[1], ok
}

type fakeAssembler struct {
	results map[string]window.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeAssembler) Assemble(_ context.Context, t window.Target) (window.Result, error) {
	f.calls = append(f.calls, t.PlayerID)
	return f.results[t.PlayerID], f.errs[t.PlayerID]
}

func TestSeedStats(t *testing.T) {
	st := store.New(t.TempDir())
	_, err := st.Players.Write([]record.Player{
		{PlayerID: "a_1", FangraphsID: 1},
		{PlayerID: "b_2", FangraphsID: 2},
		{PlayerID: "c_3", FangraphsID: -1},
		{PlayerID: "d_4", FangraphsID: 4},
		{PlayerID: "e_5", FangraphsID: 5},
	}, false)
	require.NoError(t, err)

	hr := 10.0
	asm := &fakeAssembler{
		results: map[string]window.Result{
			"a_1": {Batters: []record.BatterStats{{PlayerID: "a_1", Year: 2020, WindowYears: 1, HR: &hr}}, Failures: 2},
			"d_4": {Pitchers: []record.PitcherStats{{PlayerID: "d_4", Year: 2021, WindowYears: 1}}},
		},
		errs: map[string]error{"d_4": fmt.Errorf("lookup: %w", web.ErrRateLimited)},
	}
	careers := fakeCareers{1: {2019, 2020}, 4: {2021, 2024}, 5: {2020, 2022}}

	res := SeedStats(context.Background(), st, careers, asm, discard())
	assert.True(t, res.RateLimited)
	assert.Equal(t, 1, res.BatterStatsWritten)
	assert.Equal(t, 1, res.PitcherStatsWritten, "partial records survive the rate limit")
	assert.Equal(t, 2, res.LookupFailures)
	assert.Equal(t, []string{"a_1", "d_4"}, asm.calls, "b_2 has no career, c_3 no id, e_5 after the stop")
	assert.Len(t, res.Errors, 2)

	pitchers, err := st.Pitchers.Read()
	require.NoError(t, err)
	assert.Len(t, pitchers, 1)
}

func TestSeedResult_AddAndSummary(t *testing.T) {
	var r SeedResult
	r.Add(SeedResult{ContractsWritten: 2, RateLimited: true, Errors: []string{"x"}})
	r.AddErrorf("y %d", 1)
	assert.Equal(t, 2, r.ContractsWritten)
	assert.True(t, r.RateLimited)
	assert.Equal(t, []string{"x", "y 1"}, r.Errors)
	assert.Contains(t, r.Summary(), "contracts=2")
}

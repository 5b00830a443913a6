package maintenance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mlb-contract-value/internal/provider/register"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
	"github.com/albapepper/mlb-contract-value/internal/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func strp(s string) *string { return &s }

func TestCleanMalformedIDs(t *testing.T) {
	st := store.New(t.TempDir())
	_, err := st.Players.Write([]record.Player{
		{PlayerID: "Soto_12345", FangraphsID: 20123},
		{PlayerID: "Burnes_QO_2024", FangraphsID: 1},
	}, false)
	require.NoError(t, err)
	_, err = st.Contracts.Write([]record.Contract{
		{ContractID: "Soto_12345_2024", PlayerID: "Soto_12345", Year: 2024, Duration: 15, Value: 765, Type: record.FreeAgent},
		{ContractID: "Burnes_QO_2024_2024", PlayerID: "Burnes_QO_2024", Year: 2024, Duration: 1, Value: 21, Type: record.FreeAgent},
	}, false)
	require.NoError(t, err)

	res, err := CleanMalformedIDs(st, discard())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PlayersRemoved)
	assert.Equal(t, 1, res.ContractsRemoved)

	players, err := st.Players.Read()
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Soto_12345", players[0].PlayerID)
	contracts, err := st.Contracts.Read()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "Soto_12345", contracts[0].PlayerID)

	again, err := CleanMalformedIDs(st, discard())
	require.NoError(t, err)
	assert.Zero(t, again.PlayersRemoved)
}

func TestBackfillReferenceLinks(t *testing.T) {
	st := store.New(t.TempDir())
	existing := "https://example.com/kept"
	_, err := st.Players.Write([]record.Player{
		{PlayerID: "a_1", FangraphsID: 20123},
		{PlayerID: "b_2", FangraphsID: 99},
		{PlayerID: "c_3", FangraphsID: 22267, BaseballReferenceLink: &existing},
		{PlayerID: "d_4", FangraphsID: -1},
	}, false)
	require.NoError(t, err)

	reg := register.New([]register.Entry{
		{FangraphsID: 20123, BbrefID: "sotoju01", FirstName: "Juan", LastName: "Soto"},
		{FangraphsID: 22267, BbrefID: "skubata01", FirstName: "Tarik", LastName: "Skubal"},
	})
	res, err := BackfillReferenceLinks(st, reg, discard())
	require.NoError(t, err)
	assert.Equal(t, 1, res.LinksFilled)
	assert.Equal(t, 1, res.Failures)

	players, err := st.Players.Read()
	require.NoError(t, err)
	byID := store.Index(players)
	require.NotNil(t, byID["a_1"].BaseballReferenceLink)
	assert.Equal(t, "https://www.baseball-reference.com/players/s/sotoju01.shtml", *byID["a_1"].BaseballReferenceLink)
	assert.Equal(t, existing, *byID["c_3"].BaseballReferenceLink)
	assert.Nil(t, byID["b_2"].BaseballReferenceLink)
}

type fakeScraper struct {
	dates map[string]time.Time
	errs  map[string]error
	calls []string
}

func (f *fakeScraper) BirthDate(_ context.Context, url string) (time.Time, bool, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return time.Time{}, false, err
	}
	d, ok := f.dates[url]
	return d, ok, nil
}

func TestBackfillBirthDates_StopsOnRateLimitAndKeepsCollected(t *testing.T) {
	st := store.New(t.TempDir())
	born := time.Date(1998, 10, 25, 0, 0, 0, 0, time.UTC)
	_, err := st.Players.Write([]record.Player{
		{PlayerID: "a_1", BaseballReferenceLink: strp("u1")},
		{PlayerID: "b_2", BaseballReferenceLink: strp("u2")},
		{PlayerID: "c_3", BaseballReferenceLink: strp("u3")},
		{PlayerID: "d_4", BaseballReferenceLink: strp("u4")},
		{PlayerID: "e_5"},
	}, false)
	require.NoError(t, err)

	scraper := &fakeScraper{
		dates: map[string]time.Time{"u1": born, "u4": born},
		errs: map[string]error{
			"u2": fmt.Errorf("x: %w", web.ErrUnavailable),
			"u3": fmt.Errorf("x: %w", web.ErrRateLimited),
		},
	}
	res, err := BackfillBirthDates(context.Background(), st, scraper, discard())
	require.ErrorIs(t, err, web.ErrRateLimited)
	assert.True(t, res.RateLimited)
	assert.Equal(t, 1, res.BirthDatesFilled)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, []string{"u1", "u2", "u3"}, scraper.calls)

	players, err := st.Players.Read()
	require.NoError(t, err)
	byID := store.Index(players)
	require.NotNil(t, byID["a_1"].BirthDate)
	assert.True(t, born.Equal(*byID["a_1"].BirthDate))
	assert.Nil(t, byID["d_4"].BirthDate)
	assert.Len(t, players, 5)
}

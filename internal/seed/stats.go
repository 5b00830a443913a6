package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/store"
	"github.com/albapepper/mlb-contract-value/internal/window"
)

// CareerLookup returns a player's first and last major league seasons.
type CareerLookup interface {
	Career(fangraphsID int) (first, last int, ok bool)
}

// Assembler builds the stat records of one player.
type Assembler interface {
	Assemble(ctx context.Context, t window.Target) (window.Result, error)
}

// SeedStats assembles season and window stats for every stored player with
// a FanGraphs id and appends them to the stat tables, one player at a time.
// A rate-limited lookup stops the run after the player's partial records
// are written.
func SeedStats(ctx context.Context, st *store.Store, careers CareerLookup, assembler Assembler, logger *slog.Logger) SeedResult {
	var result SeedResult

	players, err := st.Players.Read()
	if err != nil {
		result.AddErrorf("read players: %v", err)
		return result
	}

	logger.Info("Seeding stats...", "players", len(players))
	for i, p := range players {
		if p.FangraphsID <= 0 {
			continue
		}
		first, last, ok := careers.Career(p.FangraphsID)
		if !ok {
			result.AddErrorf("no career span for %s (fangraphs %d)", p.PlayerID, p.FangraphsID)
			continue
		}

		res, err := assembler.Assemble(ctx, window.Target{
			PlayerID:    p.PlayerID,
			FangraphsID: p.FangraphsID,
			StartYear:   first,
			EndYear:     last,
		})
		result.LookupFailures += res.Failures

		n, werr := st.Batters.Write(res.Batters, false)
		if werr != nil {
			result.AddErrorf("write batter stats %s: %v", p.PlayerID, werr)
		}
		result.BatterStatsWritten += n
		n, werr = st.Pitchers.Write(res.Pitchers, false)
		if werr != nil {
			result.AddErrorf("write pitcher stats %s: %v", p.PlayerID, werr)
		}
		result.PitcherStatsWritten += n

		if err != nil {
			result.AddErrorf("assemble %s: %v", p.PlayerID, err)
			if errors.Is(err, web.ErrRateLimited) || ctx.Err() != nil {
				result.RateLimited = errors.Is(err, web.ErrRateLimited)
				logger.Warn("Stat seeding stopped early", "player_id", p.PlayerID, "error", err)
				break
			}
			continue
		}

		if (i+1)%25 == 0 {
			logger.Info("Stats progress", "processed", i+1, "of", len(players))
		}
	}

	logger.Info("Stat seed complete", "summary", result.Summary())
	return result
}

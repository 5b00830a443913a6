// Package maintenance runs the cleanup passes over the stored dataset:
// removing players created from malformed listing ids, and backfilling
// reference links and birth dates that ingestion could not fill in.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/albapepper/mlb-contract-value/internal/provider/bbref"
	"github.com/albapepper/mlb-contract-value/internal/provider/register"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
	"github.com/albapepper/mlb-contract-value/internal/store"
)

// Ids built from a qualifying-offer listing link end in "QO_<n>".
var malformedID = regexp.MustCompile(`QO_\d+$`)

// ReferenceIDs maps a FanGraphs id to its register entry.
type ReferenceIDs interface {
	ByFangraphsID(id int) (register.Entry, bool)
}

// BirthDates scrapes a birth date from a profile page.
type BirthDates interface {
	BirthDate(ctx context.Context, profileURL string) (time.Time, bool, error)
}

// Result counts the changes of one cleanup pass.
type Result struct {
	PlayersRemoved   int
	ContractsRemoved int
	LinksFilled      int
	BirthDatesFilled int
	Failures         int
	RateLimited      bool
}

// --------------------------------------------------------------------------
// Malformed ids
// --------------------------------------------------------------------------

// CleanMalformedIDs removes players whose id matches QO_<n> together with
// their contracts, rewriting both tables.
func CleanMalformedIDs(st *store.Store, logger *slog.Logger) (Result, error) {
	var res Result

	players, err := st.Players.Read()
	if err != nil {
		return res, fmt.Errorf("read players: %w", err)
	}
	removed := make(map[string]bool)
	kept := make([]record.Player, 0, len(players))
	for _, p := range players {
		if malformedID.MatchString(p.PlayerID) {
			removed[p.PlayerID] = true
			continue
		}
		kept = append(kept, p)
	}
	if len(removed) == 0 {
		logger.Info("Cleanup: no malformed player ids")
		return res, nil
	}

	contracts, err := st.Contracts.Read()
	if err != nil {
		return res, fmt.Errorf("read contracts: %w", err)
	}
	keptContracts := make([]record.Contract, 0, len(contracts))
	for _, c := range contracts {
		if removed[c.PlayerID] {
			res.ContractsRemoved++
			continue
		}
		keptContracts = append(keptContracts, c)
	}

	if _, err := st.Players.Write(kept, true); err != nil {
		return res, fmt.Errorf("rewrite players: %w", err)
	}
	if _, err := st.Contracts.Write(keptContracts, true); err != nil {
		return res, fmt.Errorf("rewrite contracts: %w", err)
	}
	res.PlayersRemoved = len(removed)
	logger.Info("Cleanup: removed malformed players",
		"players", res.PlayersRemoved, "contracts", res.ContractsRemoved)
	return res, nil
}

// --------------------------------------------------------------------------
// Backfills
// --------------------------------------------------------------------------

// BackfillReferenceLinks fills the Baseball-Reference link of players that
// have a FanGraphs id but no link.
func BackfillReferenceLinks(st *store.Store, ids ReferenceIDs, logger *slog.Logger) (Result, error) {
	var res Result

	players, err := st.Players.Read()
	if err != nil {
		return res, fmt.Errorf("read players: %w", err)
	}
	for i := range players {
		p := &players[i]
		if p.BaseballReferenceLink != nil || p.FangraphsID <= 0 {
			continue
		}
		entry, ok := ids.ByFangraphsID(p.FangraphsID)
		if !ok {
			res.Failures++
			continue
		}
		if u, ok := bbref.ProfileURL(entry.BbrefID); ok {
			p.BaseballReferenceLink = &u
			res.LinksFilled++
		} else {
			res.Failures++
		}
	}

	if res.LinksFilled == 0 {
		logger.Info("Backfill: no reference links to fill", "unmatched", res.Failures)
		return res, nil
	}
	if _, err := st.Players.Write(players, true); err != nil {
		return res, fmt.Errorf("rewrite players: %w", err)
	}
	logger.Info("Backfill: reference links filled", "count", res.LinksFilled, "unmatched", res.Failures)
	return res, nil
}

// BackfillBirthDates scrapes the birth date of every player with a
// reference link and no birth date. Pacing between requests comes from the
// scraper's client. A rate-limited request or a cancelled context stops the
// loop; dates collected before it are still written.
func BackfillBirthDates(ctx context.Context, st *store.Store, scraper BirthDates, logger *slog.Logger) (Result, error) {
	var res Result

	players, err := st.Players.Read()
	if err != nil {
		return res, fmt.Errorf("read players: %w", err)
	}

	var loopErr error
	for i := range players {
		p := &players[i]
		if p.BirthDate != nil || p.BaseballReferenceLink == nil || *p.BaseballReferenceLink == "" {
			continue
		}
		born, found, err := scraper.BirthDate(ctx, *p.BaseballReferenceLink)
		if err != nil {
			if errors.Is(err, web.ErrRateLimited) || ctx.Err() != nil {
				res.RateLimited = errors.Is(err, web.ErrRateLimited)
				loopErr = err
				logger.Warn("Backfill: birth dates stopped early", "player_id", p.PlayerID, "error", err)
				break
			}
			res.Failures++
			logger.Warn("Backfill: birth date lookup failed", "player_id", p.PlayerID, "error", err)
			continue
		}
		if !found {
			res.Failures++
			continue
		}
		p.BirthDate = &born
		res.BirthDatesFilled++
		logger.Info("Backfill: birth date", "player_id", p.PlayerID, "born", born.Format(record.DateLayout))
	}

	if res.BirthDatesFilled > 0 {
		if _, err := st.Players.Write(players, true); err != nil {
			return res, fmt.Errorf("rewrite players: %w", err)
		}
	}
	logger.Info("Backfill: birth dates filled", "count", res.BirthDatesFilled, "failures", res.Failures)
	return res, loopErr
}

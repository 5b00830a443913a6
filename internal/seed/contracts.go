package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/albapepper/mlb-contract-value/internal/extract"
	"github.com/albapepper/mlb-contract-value/internal/identity"
	"github.com/albapepper/mlb-contract-value/internal/provider/bbref"
	"github.com/albapepper/mlb-contract-value/internal/provider/spotrac"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
	"github.com/albapepper/mlb-contract-value/internal/store"
)

// TableFetcher downloads and parses one listing page.
type TableFetcher interface {
	FetchTable(ctx context.Context, url string) (extract.Table, error)
}

// Resolver maps a listing row to a player identity.
type Resolver interface {
	Resolve(ctx context.Context, displayName, link string, year int) (identity.Identity, error)
}

// SourceFunc lists the listing pages of a season.
type SourceFunc func(year int) []spotrac.Source

// SeedContracts ingests contract listings for every season in
// [startYear, endYear]. Each season's players and contracts are appended to
// the store once its pages are processed. A rate-limited page stops the run
// after the records collected so far are written.
func SeedContracts(ctx context.Context, st *store.Store, fetcher TableFetcher, resolver Resolver, sources SourceFunc, startYear, endYear int, logger *slog.Logger) SeedResult {
	var result SeedResult

	for year := startYear; year <= endYear; year++ {
		logger.Info("Seeding contracts...", "year", year)
		var players []record.Player
		var contracts []record.Contract
		stop := false

		for _, src := range sources(year) {
			table, err := fetcher.FetchTable(ctx, src.URL)
			if err != nil {
				if errors.Is(err, web.ErrRateLimited) || ctx.Err() != nil {
					result.RateLimited = errors.Is(err, web.ErrRateLimited)
					result.AddErrorf("fetch %s %d: %v", src.Name, year, err)
					stop = true
					break
				}
				result.PagesUnavailable++
				logger.Warn("Source unavailable", "source", src.Name, "year", year, "url", src.URL, "error", err)
				continue
			}

			rows, skips, err := extract.ContractRows(table)
			if err != nil {
				result.PagesUnavailable++
				logger.Warn("Unreadable listing", "source", src.Name, "year", year, "error", err)
				continue
			}
			for _, s := range skips {
				logger.Info("Row skipped", "source", src.Name, "year", year, "row", s.Row, "player", s.Name, "reason", s.Reason)
			}
			result.RowsSkipped += len(skips)

			for _, row := range rows {
				id, err := resolver.Resolve(ctx, row.DisplayName, row.Link, year)
				if errors.Is(err, identity.ErrUnresolved) {
					result.Unresolved++
					continue
				}
				if err != nil {
					result.AddErrorf("resolve %s (%s %d): %v", row.DisplayName, src.Name, year, err)
					continue
				}
				if id.LowConfidence {
					result.LowConfidence++
				}
				players = append(players, newPlayer(id, row))
				contracts = append(contracts, newContract(id, row, year, src.Type))
			}
			logger.Info("Source done", "source", src.Name, "year", year, "rows", len(rows), "skipped", len(skips))
		}

		n, err := st.Players.Write(players, false)
		if err != nil {
			result.AddErrorf("write players %d: %v", year, err)
		}
		result.PlayersWritten += n

		n, err = st.Contracts.Write(contracts, false)
		if err != nil {
			result.AddErrorf("write contracts %d: %v", year, err)
		}
		result.ContractsWritten += n
		logger.Info("Contracts done", "year", year, "players", len(players), "contracts", len(contracts))

		if stop {
			logger.Warn("Contract seeding stopped early", "year", year)
			break
		}
	}

	logger.Info("Contract seed complete", "summary", result.Summary())
	return result
}

func newPlayer(id identity.Identity, row extract.ContractRow) record.Player {
	p := record.Player{
		PlayerID:    id.PlayerID,
		FangraphsID: id.FangraphsID,
		FirstName:   id.FirstName,
		LastName:    id.LastName,
		Position:    row.Position,
	}
	link := row.Link
	p.SpotracLink = &link
	if u, ok := bbref.ProfileURL(id.BbrefID); ok {
		p.BaseballReferenceLink = &u
	}
	return p
}

func newContract(id identity.Identity, row extract.ContractRow, year int, typ record.ContractType) record.Contract {
	return record.Contract{
		ContractID:  record.ContractID(id.PlayerID, year),
		PlayerID:    id.PlayerID,
		Age:         row.Age,
		ServiceTime: row.ServiceTime,
		Year:        year,
		Duration:    row.Duration,
		Value:       row.Value,
		Type:        typ,
	}
}

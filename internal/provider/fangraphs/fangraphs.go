// Package fangraphs looks up season and multi-season stat lines from the
// FanGraphs major league leaderboards.
//
// A leaderboard is fetched once per (kind, start, end) and cached for the
// run; single-player lookups filter the cached board by FanGraphs id.
package fangraphs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/albapepper/mlb-contract-value/internal/cache"
	"github.com/albapepper/mlb-contract-value/internal/provider"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

const leadersPath = "/api/leaders/major-league/data"

// leaderboard maps FanGraphs id to that player's stat values.
type leaderboard map[int]map[string]float64

type leadersResponse struct {
	Data []map[string]interface{} `json:"data"`
}

// Client is the FanGraphs stats lookup.
type Client struct {
	web     *web.Client
	baseURL string
	boards  *cache.Cache[leaderboard]
	logger  *slog.Logger
}

// NewClient creates a FanGraphs client over a paced web client.
func NewClient(baseURL string, client *web.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		web:     client,
		baseURL: baseURL,
		boards:  cache.New[leaderboard](true),
		logger:  logger,
	}
}

// Season returns a player's stat line for one season. found is false when
// the player has no line that season.
func (c *Client) Season(ctx context.Context, kind record.StatKind, fangraphsID, year int) (map[string]float64, bool, error) {
	return c.Range(ctx, kind, fangraphsID, year, year)
}

// Range returns a player's stat line accumulated over [start, end].
func (c *Client) Range(ctx context.Context, kind record.StatKind, fangraphsID, start, end int) (map[string]float64, bool, error) {
	board, err := c.board(ctx, kind, start, end)
	if err != nil {
		return nil, false, err
	}
	values, ok := board[fangraphsID]
	return values, ok, nil
}

func (c *Client) board(ctx context.Context, kind record.StatKind, start, end int) (leaderboard, error) {
	key := fmt.Sprintf("%s|%d|%d", kind, start, end)
	if b, ok := c.boards.Get(key); ok {
		return b, nil
	}

	body, err := c.web.Get(ctx, c.leadersURL(kind, start, end))
	if err != nil {
		return nil, fmt.Errorf("fangraphs %s %d-%d: %w", kind, start, end, err)
	}
	board, err := parseLeaderboard(body)
	if err != nil {
		return nil, fmt.Errorf("fangraphs %s %d-%d: %w", kind, start, end, err)
	}

	c.logger.Info("Leaderboard fetched", "kind", string(kind), "start", start, "end", end, "players", len(board))
	c.boards.Set(key, board, cache.TTLLeaderboard)
	return board, nil
}

func (c *Client) leadersURL(kind record.StatKind, start, end int) string {
	params := url.Values{}
	params.Set("pos", "all")
	params.Set("stats", string(kind))
	params.Set("lg", "all")
	params.Set("qual", "0")
	params.Set("type", "8")
	params.Set("season1", strconv.Itoa(start))
	params.Set("season", strconv.Itoa(end))
	params.Set("ind", "0")
	params.Set("month", "0")
	params.Set("team", "0")
	params.Set("rost", "0")
	params.Set("pageitems", "2000000000")
	params.Set("pagenum", "1")
	return c.baseURL + leadersPath + "?" + params.Encode()
}

func parseLeaderboard(body []byte) (leaderboard, error) {
	var resp leadersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	board := make(leaderboard, len(resp.Data))
	for _, row := range resp.Data {
		id, ok := provider.ExtractValue(row["playerid"])
		if !ok {
			continue
		}
		board[int(id)] = provider.ExtractValues(row)
	}
	return board, nil
}

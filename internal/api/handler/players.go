package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/mlb-contract-value/internal/api/respond"
	"github.com/albapepper/mlb-contract-value/internal/cache"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// GetPlayers returns one page of players ordered by name.
func (h *Handler) GetPlayers(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultPageSize, 1, maxPageSize)
	if !ok {
		return
	}
	offset, ok := intParam(w, r, "offset", 0, 0, 1<<30)
	if !ok {
		return
	}

	key := fmt.Sprintf("players:%d:%d", limit, offset)
	h.cached(w, r, key, cache.TTLDataset, "No players", func() ([]byte, error) {
		return h.q.PlayersJSON(r.Context(), limit, offset)
	})
}

// GetPlayer returns one player.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	h.cached(w, r, "player:"+id, cache.TTLDataset, "Player "+id+" not found", func() ([]byte, error) {
		return h.q.PlayerJSON(r.Context(), id)
	})
}

// GetPlayerContracts returns a player's contracts ordered by year.
func (h *Handler) GetPlayerContracts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	h.cached(w, r, "contracts:"+id, cache.TTLDataset, "Player "+id+" not found", func() ([]byte, error) {
		return h.q.ContractsJSON(r.Context(), id)
	})
}

// GetPlayerStats returns a player's batting or pitching records, optionally
// restricted to one window size.
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")

	kind := record.StatKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = record.Batting
	}
	if kind != record.Batting && kind != record.Pitching {
		respond.Error(w, http.StatusBadRequest, "INVALID_KIND", "kind must be 'bat' or 'pit'")
		return
	}
	window, ok := intParam(w, r, "window", 0, 0, 20)
	if !ok {
		return
	}

	key := fmt.Sprintf("stats:%s:%s:%d", id, kind, window)
	h.cached(w, r, key, cache.TTLDataset, "Player "+id+" not found", func() ([]byte, error) {
		return h.q.StatsJSON(r.Context(), id, string(kind), window)
	})
}

// GetContractSummary returns contract value aggregates by year and type.
func (h *Handler) GetContractSummary(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "contract_summary", cache.TTLDataset, "No contracts", func() ([]byte, error) {
		return h.q.ContractSummaryJSON(r.Context())
	})
}

// intParam parses an optional integer query parameter within [lo, hi]. On
// failure it writes a 400 and returns false.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		respond.BadParam(w, name, lo, hi)
		return 0, false
	}
	return n, true
}

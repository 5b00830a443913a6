// Package identity maps scraped player names to stable dataset ids and
// stat-provider ids.
//
// A player's dataset id is derived from the last name and the listing site's
// per-player link id, which is stable across seasons. The provider id comes
// from a name lookup disambiguated by career span; ambiguous or missing
// matches are handed to a pluggable Strategy.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/albapepper/mlb-contract-value/internal/record"
)

// ErrUnresolved is returned when no single provider identity can be chosen
// for a name. Callers drop the row and continue.
var ErrUnresolved = errors.New("identity unresolved")

// qualifyingOfferMarker is appended to names of players who received a
// qualifying offer.
const qualifyingOfferMarker = "QO"

// maxCorrections bounds the number of name corrections asked per record.
const maxCorrections = 3

// Candidate is one row returned by a name lookup.
type Candidate struct {
	FangraphsID int // <= 0 when the provider has no id
	BbrefID     string
	FirstName   string
	LastName    string
	FirstSeason int // 0 when unknown
	LastSeason  int // 0 when unknown
}

// HasCareer reports whether the candidate has a known career span.
func (c Candidate) HasCareer() bool {
	return c.FirstSeason > 0 && c.LastSeason > 0
}

// Active reports whether year falls within the career span padded by one
// season on each side.
func (c Candidate) Active(year int) bool {
	return c.HasCareer() && c.FirstSeason-1 <= year && year <= c.LastSeason+1
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s (fangraphs=%d bbref=%s %d-%d)",
		c.FirstName, c.LastName, c.FangraphsID, c.BbrefID, c.FirstSeason, c.LastSeason)
}

// Lookup is the name to identity lookup service.
type Lookup interface {
	LookupName(ctx context.Context, last, first string, fuzzy bool) ([]Candidate, error)
}

// Identity is a resolved player.
type Identity struct {
	PlayerID      string
	FirstName     string
	LastName      string
	FangraphsID   int
	BbrefID       string
	LowConfidence bool
}

// --------------------------------------------------------------------------
// Name handling
// --------------------------------------------------------------------------

// SplitName splits a display name at the first space and strips the
// qualifying offer marker from the last name.
func SplitName(display string) (first, last string, err error) {
	display = strings.TrimSpace(display)
	first, last, ok := strings.Cut(display, " ")
	if !ok {
		return "", "", fmt.Errorf("display name %q has no last name", display)
	}
	last = strings.TrimSpace(last)
	if strings.HasSuffix(last, qualifyingOfferMarker) {
		last = strings.TrimSpace(strings.TrimSuffix(last, qualifyingOfferMarker))
	}
	if first == "" || last == "" {
		return "", "", fmt.Errorf("display name %q has no last name", display)
	}
	return first, last, nil
}

// LookupFirstName spaces out dotted initials ("J.D." -> "J. D.") the way
// the lookup service indexes them.
func LookupFirstName(first string) string {
	if !strings.Contains(first, ".") {
		return first
	}
	return strings.TrimSpace(strings.ReplaceAll(first, ".", ". "))
}

// LinkID returns the last path segment of a listing link.
func LinkID(link string) string {
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

// PlayerID derives the dataset id from a last name and a listing link.
func PlayerID(last, link string) string {
	return last + "_" + LinkID(link)
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

// Cache holds the identities resolved during one run and the (player, year)
// pairs that could not be resolved, so neither costs a second lookup.
type Cache struct {
	hits   map[string]Identity
	misses map[string]struct{}
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		hits:   make(map[string]Identity),
		misses: make(map[string]struct{}),
	}
}

func missKey(playerID string, year int) string {
	return fmt.Sprintf("%s|%d", playerID, year)
}

// Get returns a cached identity.
func (c *Cache) Get(playerID string) (Identity, bool) {
	id, ok := c.hits[playerID]
	return id, ok
}

// Put stores an identity.
func (c *Cache) Put(id Identity) { c.hits[id.PlayerID] = id }

// Len returns the number of resolved identities.
func (c *Cache) Len() int { return len(c.hits) }

func (c *Cache) missed(playerID string, year int) bool {
	_, ok := c.misses[missKey(playerID, year)]
	return ok
}

func (c *Cache) miss(playerID string, year int) {
	c.misses[missKey(playerID, year)] = struct{}{}
}

// --------------------------------------------------------------------------
// Resolver
// --------------------------------------------------------------------------

// Resolver resolves listing rows to identities. It is not safe for
// concurrent use; one resolver serves one ingestion run.
type Resolver struct {
	lookup   Lookup
	strategy Strategy
	cache    *Cache
	logger   *slog.Logger
}

// NewResolver creates a resolver with an empty cache. A nil strategy
// behaves like AutoFail.
func NewResolver(lookup Lookup, strategy Strategy, logger *slog.Logger) *Resolver {
	if strategy == nil {
		strategy = AutoFail{}
	}
	return &Resolver{
		lookup:   lookup,
		strategy: strategy,
		cache:    NewCache(),
		logger:   logger,
	}
}

// Cache exposes the resolver's run cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Seed primes the cache with players already in the dataset and returns how
// many were added.
func (r *Resolver) Seed(players []record.Player) int {
	n := 0
	for _, p := range players {
		if p.FangraphsID <= 0 {
			continue
		}
		r.cache.Put(Identity{
			PlayerID:    p.PlayerID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			FangraphsID: p.FangraphsID,
		})
		n++
	}
	return n
}

// Resolve maps a display name and listing link, seen on a contract for
// year, to an identity. It returns an error wrapping ErrUnresolved when no
// identity can be chosen; any other error comes from the lookup service and
// is not cached.
func (r *Resolver) Resolve(ctx context.Context, displayName, link string, year int) (Identity, error) {
	first, last, err := SplitName(displayName)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	playerID := PlayerID(last, link)

	if id, ok := r.cache.Get(playerID); ok {
		return id, nil
	}
	if r.cache.missed(playerID, year) {
		return Identity{}, fmt.Errorf("%w: %s (%d), cached", ErrUnresolved, displayName, year)
	}

	cand, low, err := r.resolveName(ctx, first, last, year, 0)
	if err != nil {
		if errors.Is(err, ErrUnresolved) {
			r.cache.miss(playerID, year)
			r.logger.Warn("Player unresolved", "player", displayName, "year", year, "player_id", playerID)
		}
		return Identity{}, err
	}

	id := Identity{
		PlayerID:      playerID,
		FirstName:     first,
		LastName:      last,
		FangraphsID:   cand.FangraphsID,
		BbrefID:       cand.BbrefID,
		LowConfidence: low,
	}
	r.cache.Put(id)
	r.logger.Info("Player mapped",
		"player", displayName, "year", year, "player_id", playerID,
		"fangraphs_id", id.FangraphsID, "low_confidence", low)
	return id, nil
}

func (r *Resolver) resolveName(ctx context.Context, first, last string, year, depth int) (Candidate, bool, error) {
	query := LookupFirstName(first)

	cands, err := r.lookup.LookupName(ctx, last, query, false)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("lookup %s %s: %w", first, last, err)
	}
	if len(cands) == 0 {
		cands, err = r.lookup.LookupName(ctx, last, query, true)
		if err != nil {
			return Candidate{}, false, fmt.Errorf("fuzzy lookup %s %s: %w", first, last, err)
		}
	}

	switch {
	case len(cands) == 0:
		if depth >= maxCorrections {
			return Candidate{}, false, fmt.Errorf("%w: %s %s (%d), too many corrections", ErrUnresolved, first, last, year)
		}
		nf, nl, ok, err := r.strategy.CorrectName(ctx, first, last, year)
		if err != nil {
			return Candidate{}, false, err
		}
		if !ok {
			return Candidate{}, false, fmt.Errorf("%w: %s %s (%d), no match", ErrUnresolved, first, last, year)
		}
		return r.resolveName(ctx, nf, nl, year, depth+1)

	case len(cands) == 1:
		return accept(cands[0], !cands[0].HasCareer(), first, last, year)
	}

	remaining := filterCandidates(cands, year)
	switch len(remaining) {
	case 0:
		return Candidate{}, false, fmt.Errorf("%w: %s %s (%d), no candidate active", ErrUnresolved, first, last, year)
	case 1:
		return accept(remaining[0], false, first, last, year)
	}

	choice, ok, err := r.strategy.Choose(ctx, first, last, year, remaining)
	if err != nil {
		return Candidate{}, false, err
	}
	if !ok {
		return Candidate{}, false, fmt.Errorf("%w: %s %s (%d), ambiguous", ErrUnresolved, first, last, year)
	}
	return accept(choice, false, first, last, year)
}

func accept(c Candidate, low bool, first, last string, year int) (Candidate, bool, error) {
	if c.FangraphsID <= 0 {
		return Candidate{}, false, fmt.Errorf("%w: %s %s (%d), match has no provider id", ErrUnresolved, first, last, year)
	}
	return c, low, nil
}

// filterCandidates dedupes by provider id, drops candidates without a career
// span and keeps those active around year.
func filterCandidates(cands []Candidate, year int) []Candidate {
	seen := make(map[int]struct{}, len(cands))
	var out []Candidate
	for _, c := range cands {
		if _, dup := seen[c.FangraphsID]; dup {
			continue
		}
		seen[c.FangraphsID] = struct{}{}
		if c.Active(year) {
			out = append(out, c)
		}
	}
	return out
}

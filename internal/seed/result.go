// Package seed orchestrates the ingestion steps: contract listings into the
// players and contracts tables, and stat windows into the stat tables.
package seed

import "fmt"

// SeedResult tracks counts and errors from a seeding operation.
type SeedResult struct {
	PlayersWritten      int
	ContractsWritten    int
	BatterStatsWritten  int
	PitcherStatsWritten int
	RowsSkipped         int
	Unresolved          int
	LowConfidence       int
	PagesUnavailable    int
	LookupFailures      int
	RateLimited         bool
	Errors              []string
}

// Add merges another SeedResult into this one.
func (r *SeedResult) Add(other SeedResult) {
	r.PlayersWritten += other.PlayersWritten
	r.ContractsWritten += other.ContractsWritten
	r.BatterStatsWritten += other.BatterStatsWritten
	r.PitcherStatsWritten += other.PitcherStatsWritten
	r.RowsSkipped += other.RowsSkipped
	r.Unresolved += other.Unresolved
	r.LowConfidence += other.LowConfidence
	r.PagesUnavailable += other.PagesUnavailable
	r.LookupFailures += other.LookupFailures
	r.RateLimited = r.RateLimited || other.RateLimited
	r.Errors = append(r.Errors, other.Errors...)
}

// AddError records an error message.
func (r *SeedResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddErrorf records a formatted error message.
func (r *SeedResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the seed operation.
func (r *SeedResult) Summary() string {
	return fmt.Sprintf(
		"players=%d contracts=%d batter_stats=%d pitcher_stats=%d skipped=%d unresolved=%d low_confidence=%d pages_unavailable=%d lookup_failures=%d rate_limited=%t errors=%d",
		r.PlayersWritten, r.ContractsWritten,
		r.BatterStatsWritten, r.PitcherStatsWritten,
		r.RowsSkipped, r.Unresolved, r.LowConfidence,
		r.PagesUnavailable, r.LookupFailures, r.RateLimited,
		len(r.Errors),
	)
}

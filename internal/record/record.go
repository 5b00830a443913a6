// Package record defines the persisted entities of the dataset: players,
// contracts and the two stat record variants. Column order on disk follows
// field order; `csv` tags name the columns.
//
// Optional values are pointers. A nil pointer serializes to the column's
// sentinel (empty string unless the field carries an `absent` tag) and reads
// back as nil, never as zero.
package record

import (
	"fmt"
	"math"
	"time"
)

// ContractType classifies how a contract was obtained.
type ContractType string

const (
	PreArb    ContractType = "pre-arb"
	Arb       ContractType = "arb"
	FreeAgent ContractType = "free-agent"
)

// Valid reports whether t is one of the known contract types.
func (t ContractType) Valid() bool {
	switch t {
	case PreArb, Arb, FreeAgent:
		return true
	}
	return false
}

// ServiceDaysPerYear is the number of roster days that make up one year of
// major league service.
const ServiceDaysPerYear = 172

// Player is a row of the players table.
type Player struct {
	PlayerID              string     `csv:"player_id"`
	FangraphsID           int        `csv:"fangraphs_id"`
	FirstName             string     `csv:"first_name"`
	LastName              string     `csv:"last_name"`
	Position              string     `csv:"position"`
	BirthDate             *time.Time `csv:"birth_date"`
	SpotracLink           *string    `csv:"spotrac_link"`
	BaseballReferenceLink *string    `csv:"baseball_reference_link"`
}

// Key returns the player's primary key.
func (p Player) Key() string { return p.PlayerID }

// Contract is a row of the contracts table.
type Contract struct {
	ContractID  string       `csv:"contract_id"`
	PlayerID    string       `csv:"player_id"`
	Age         *int         `csv:"age" absent:"-1"`
	ServiceTime *float64     `csv:"service_time" absent:"-1"`
	Year        int          `csv:"year"`
	Duration    int          `csv:"duration"`
	Value       float64      `csv:"value"`
	Type        ContractType `csv:"type"`
}

// Key returns the contract's primary key.
func (c Contract) Key() string { return c.ContractID }

// ContractID derives the id of a player's contract for a year.
func ContractID(playerID string, year int) string {
	return fmt.Sprintf("%s_%d", playerID, year)
}

// AAV returns the average annual value in millions. Contracts without a
// positive duration are treated as one year.
func (c Contract) AAV() float64 {
	if c.Duration <= 0 {
		return c.Value
	}
	return c.Value / float64(c.Duration)
}

// NormalizeServiceTime converts the years.days service time notation
// (e.g. 3.086 = 3 years 86 days) into fractional years.
func NormalizeServiceTime(st float64) float64 {
	years := math.Trunc(st)
	days := math.Round((st - years) * 1000)
	return years + days/ServiceDaysPerYear
}

// StatKey is the composite key shared by batter and pitcher stat records.
func StatKey(playerID string, year, windowYears int) string {
	return fmt.Sprintf("%s|%d|%d", playerID, year, windowYears)
}

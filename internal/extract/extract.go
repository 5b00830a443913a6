// Package extract turns scraped listing tables into raw contract rows.
//
// Source tables are loosely structured: header text carries currency signs
// and footnotes, optional columns come and go between pages, and value cells
// hold markers such as "N/A". Rows that cannot yield a contract value are
// reported as skips, never as errors.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Cell is one table cell: its visible text and the href of its first link.
type Cell struct {
	Text string
	Href string
}

// Table is a parsed HTML table.
type Table struct {
	Header []string
	Rows   [][]Cell
}

// Column names after normalization.
const (
	ColPlayer   = "player"
	ColValue    = "value"
	ColAge      = "age"
	ColService  = "yos"
	ColYears    = "yrs"
	ColPosition = "pos"
)

// NotApplicable is the marker source tables use for an unknown value.
const NotApplicable = "N/A"

var (
	ErrNotApplicable = errors.New("value not applicable")
	ErrZeroValue     = errors.New("zero value")
)

var million = decimal.NewFromInt(1_000_000)

// Sanitize drops newlines and surrounding whitespace from cell text.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", ""))
}

// NormalizeHeader maps raw header text to a column name: currency signs
// become spaces, only the first token is kept, lowercased.
func NormalizeHeader(raw string) string {
	s := strings.ReplaceAll(Sanitize(raw), "$", " ")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// HeaderIndex maps normalized header names to column positions. When two
// headers normalize to the same name the first one wins.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if name == "" {
			continue
		}
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

// ParseMoney parses a dollar amount ("$51,875,000") into millions. It returns
// ErrNotApplicable for the N/A marker and ErrZeroValue for zero amounts.
func ParseMoney(raw string) (float64, error) {
	s := Sanitize(raw)
	if s == NotApplicable {
		return 0, ErrNotApplicable
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", raw, err)
	}
	if d.IsZero() {
		return 0, ErrZeroValue
	}
	return d.Div(million).InexactFloat64(), nil
}

// --------------------------------------------------------------------------
// Contract rows
// --------------------------------------------------------------------------

// ContractRow is one contract listing row before identity resolution.
type ContractRow struct {
	Row         int
	DisplayName string
	Link        string
	Position    string
	Value       float64 // millions
	Age         *int
	ServiceTime *float64
	Duration    int
}

// Skip describes a dropped row.
type Skip struct {
	Row    int
	Name   string
	Reason string
}

func (s Skip) String() string {
	return fmt.Sprintf("row %d (%s): %s", s.Row, s.Name, s.Reason)
}

// ContractRows extracts contract rows from a listing table. The player and
// value columns are required; age, service time, years and position are
// optional and fall back to absent (or one year for duration).
func ContractRows(t Table) ([]ContractRow, []Skip, error) {
	idx := HeaderIndex(t.Header)
	playerCol, ok := idx[ColPlayer]
	if !ok {
		return nil, nil, fmt.Errorf("table has no %q column (headers %v)", ColPlayer, t.Header)
	}
	valueCol, ok := idx[ColValue]
	if !ok {
		return nil, nil, fmt.Errorf("table has no %q column (headers %v)", ColValue, t.Header)
	}

	var rows []ContractRow
	var skips []Skip
	for i, cells := range t.Rows {
		n := i + 1
		if playerCol >= len(cells) || valueCol >= len(cells) {
			skips = append(skips, Skip{Row: n, Reason: "short row"})
			continue
		}
		name := Sanitize(cells[playerCol].Text)

		value, err := ParseMoney(cells[valueCol].Text)
		if err != nil {
			skips = append(skips, Skip{Row: n, Name: name, Reason: err.Error()})
			continue
		}
		link := Sanitize(cells[playerCol].Href)
		if name == "" || link == "" {
			skips = append(skips, Skip{Row: n, Name: name, Reason: "missing player name or link"})
			continue
		}

		row := ContractRow{
			Row:         n,
			DisplayName: name,
			Link:        link,
			Value:       value,
			Duration:    1,
		}
		if text, ok := cell(cells, idx, ColPosition); ok {
			row.Position = text
		}
		if text, ok := cell(cells, idx, ColAge); ok {
			if age, err := strconv.Atoi(text); err == nil {
				row.Age = &age
			}
		}
		if text, ok := cell(cells, idx, ColService); ok {
			if st, err := strconv.ParseFloat(text, 64); err == nil {
				row.ServiceTime = &st
			}
		}
		if text, ok := cell(cells, idx, ColYears); ok {
			if yrs, err := strconv.Atoi(text); err == nil && yrs > 0 {
				row.Duration = yrs
			}
		}
		rows = append(rows, row)
	}
	return rows, skips, nil
}

func cell(cells []Cell, idx map[string]int, col string) (string, bool) {
	i, ok := idx[col]
	if !ok || i >= len(cells) {
		return "", false
	}
	return Sanitize(cells[i].Text), true
}

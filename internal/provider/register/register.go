// Package register answers identity questions from a local copy of the
// Chadwick Bureau person register: name lookups returning provider ids with
// career spans, and reverse lookups from a FanGraphs id.
package register

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/albapepper/mlb-contract-value/internal/identity"
)

// Column names of the register files.
const (
	colBbref       = "key_bbref"
	colFangraphs   = "key_fangraphs"
	colLast        = "name_last"
	colFirst       = "name_first"
	colPlayedFirst = "mlb_played_first"
	colPlayedLast  = "mlb_played_last"
)

// Fuzzy matching returns at most fuzzyLimit names scoring at least
// fuzzyThreshold.
const (
	fuzzyLimit     = 5
	fuzzyThreshold = 0.7
)

// Entry is one person in the register.
type Entry struct {
	FangraphsID int // -1 when the person has no FanGraphs id
	BbrefID     string
	FirstName   string
	LastName    string
	FirstSeason int // 0 when the person never played in the majors
	LastSeason  int
}

func (e Entry) candidate() identity.Candidate {
	return identity.Candidate{
		FangraphsID: e.FangraphsID,
		BbrefID:     e.BbrefID,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		FirstSeason: e.FirstSeason,
		LastSeason:  e.LastSeason,
	}
}

// Register is an in-memory, read-only index over register entries.
type Register struct {
	entries     []Entry
	byName      map[string][]int
	byFangraphs map[int]int
}

// New indexes entries.
func New(entries []Entry) *Register {
	r := &Register{
		entries:     entries,
		byName:      make(map[string][]int),
		byFangraphs: make(map[int]int),
	}
	for i, e := range entries {
		key := nameKey(e.LastName, e.FirstName)
		r.byName[key] = append(r.byName[key], i)
		if e.FangraphsID > 0 {
			if _, dup := r.byFangraphs[e.FangraphsID]; !dup {
				r.byFangraphs[e.FangraphsID] = i
			}
		}
	}
	return r
}

// Load reads a register file, or every *.csv file in a directory.
func Load(path string) (*Register, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", path, err)
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("register %s: no csv files", path)
		}
	}

	var entries []Entry
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		part, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		entries = append(entries, part...)
	}
	return New(entries), nil
}

// Parse reads register rows. Rows without a last name are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{colFangraphs, colLast, colFirst} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		last := get(row, colLast)
		if last == "" {
			continue
		}
		out = append(out, Entry{
			FangraphsID: parseInt(get(row, colFangraphs), -1),
			BbrefID:     get(row, colBbref),
			FirstName:   get(row, colFirst),
			LastName:    last,
			FirstSeason: parseInt(get(row, colPlayedFirst), 0),
			LastSeason:  parseInt(get(row, colPlayedLast), 0),
		})
	}
	return out, nil
}

// parseInt accepts integers and integral floats ("2018.0").
func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return fallback
}

// Len returns the number of entries.
func (r *Register) Len() int { return len(r.entries) }

// LookupName returns the people named first last. With fuzzy set it
// returns the closest names by edit distance instead.
func (r *Register) LookupName(ctx context.Context, last, first string, fuzzy bool) ([]identity.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fuzzy {
		var out []identity.Candidate
		for _, i := range r.byName[nameKey(last, first)] {
			out = append(out, r.entries[i].candidate())
		}
		return out, nil
	}

	query := normalize(first + " " + last)
	type scored struct {
		i     int
		score float64
	}
	var hits []scored
	for i, e := range r.entries {
		s := similarity(query, normalize(e.FirstName+" "+e.LastName))
		if s >= fuzzyThreshold {
			hits = append(hits, scored{i, s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > fuzzyLimit {
		hits = hits[:fuzzyLimit]
	}
	out := make([]identity.Candidate, len(hits))
	for k, h := range hits {
		out[k] = r.entries[h.i].candidate()
	}
	return out, nil
}

// ByFangraphsID returns the register entry of a FanGraphs id.
func (r *Register) ByFangraphsID(id int) (Entry, bool) {
	i, ok := r.byFangraphs[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// --------------------------------------------------------------------------
// Name matching
// --------------------------------------------------------------------------

func nameKey(last, first string) string {
	return normalize(last) + "|" + normalize(first)
}

// normalize lowercases, strips diacritics and collapses whitespace.
func normalize(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)).
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) > len(br) {
		ar, br = br, ar
	}
	if len(ar) == 0 {
		return len(br)
	}
	prev := make([]int, len(ar)+1)
	curr := make([]int, len(ar)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(br); j++ {
		curr[0] = j
		for i := 1; i <= len(ar); i++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ar)]
}

// Career returns the first and last major league seasons of a FanGraphs id.
func (r *Register) Career(fangraphsID int) (first, last int, ok bool) {
	e, found := r.ByFangraphsID(fangraphsID)
	if !found || e.FirstSeason <= 0 || e.LastSeason < e.FirstSeason {
		return 0, 0, false
	}
	return e.FirstSeason, e.LastSeason, true
}

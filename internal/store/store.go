// Package store persists record tables as CSV files with a header row.
//
// Writes are idempotent by record key: appending a record whose key is
// already on disk is a no-op, mirroring ON CONFLICT DO NOTHING. Existing rows
// are never merged field by field; callers that need to change a row read
// the table, modify it and rewrite with overwrite=true.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/albapepper/mlb-contract-value/internal/config"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

// Keyed is implemented by every record type stored in a table.
type Keyed interface {
	Key() string
}

// Table is one CSV file holding records of type T.
type Table[T Keyed] struct {
	path string
	mu   sync.Mutex
}

// NewTable returns a table backed by path. The file is created on first write.
func NewTable[T Keyed](path string) *Table[T] {
	return &Table[T]{path: path}
}

// Path returns the backing file path.
func (t *Table[T]) Path() string { return t.path }

// Read returns every record in the table. A missing file yields an empty
// slice and no error.
func (t *Table[T]) Read() ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	recs, _, err := t.read()
	return recs, err
}

// read also returns the file's header, nil when the file is missing or empty.
func (t *Table[T]) read() ([]T, []string, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []T{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header %s: %w", t.path, err)
	}
	dec, err := record.NewDecoder[T](header)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t.path, err)
	}

	out := []T{}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s line %d: %w", t.path, line, err)
		}
		rec, err := dec.Decode(row)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", t.path, line, err)
		}
		out = append(out, rec)
	}
	return out, header, nil
}

// Write persists records. With overwrite=false only records whose key is
// neither on disk nor earlier in the batch are appended. With overwrite=true
// the file is truncated first, so the batch (deduplicated) becomes the whole
// table. A file whose header is not in struct column order is rewritten in
// that order before new rows are appended. Returns the number of new rows
// written.
func (t *Table[T]) Write(records []T, overwrite bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{})
	var existing []T
	var header []string
	if !overwrite {
		var err error
		existing, header, err = t.read()
		if err != nil {
			return 0, err
		}
		for _, rec := range existing {
			seen[rec.Key()] = struct{}{}
		}
	}

	fresh := make([]T, 0, len(records))
	for _, rec := range records {
		k := rec.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 && !overwrite {
		return 0, nil
	}

	rows := fresh
	if header != nil && !slices.Equal(header, record.SchemaOf[T]().Header()) {
		overwrite = true
		rows = append(existing, fresh...)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", t.path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(t.path, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", t.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(record.SchemaOf[T]().Header()); err != nil {
			return 0, fmt.Errorf("write header %s: %w", t.path, err)
		}
	}
	for _, rec := range rows {
		if err := w.Write(record.Encode(rec)); err != nil {
			return 0, fmt.Errorf("write %s: %w", t.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush %s: %w", t.path, err)
	}
	return len(fresh), nil
}

// Index returns the records keyed by their primary key.
func Index[T Keyed](records []T) map[string]T {
	out := make(map[string]T, len(records))
	for _, rec := range records {
		out[rec.Key()] = rec
	}
	return out
}

// --------------------------------------------------------------------------
// Store bundles the four dataset tables
// --------------------------------------------------------------------------

// Store is the Record Store rooted at one dataset directory.
type Store struct {
	Players   *Table[record.Player]
	Contracts *Table[record.Contract]
	Batters   *Table[record.BatterStats]
	Pitchers  *Table[record.PitcherStats]
}

// New opens the store under dir. Nothing is created until the first write.
func New(dir string) *Store {
	path := func(name string) string { return filepath.Join(dir, name+config.TableExt) }
	return &Store{
		Players:   NewTable[record.Player](path(config.PlayersTable)),
		Contracts: NewTable[record.Contract](path(config.ContractsTable)),
		Batters:   NewTable[record.BatterStats](path(config.BatterStatsTable)),
		Pitchers:  NewTable[record.PitcherStats](path(config.PitcherStatsTable)),
	}
}

package record

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"sync"
	"time"
)

// DateLayout is the on-disk format of date columns.
const DateLayout = "2006-01-02"

var timeType = reflect.TypeOf(time.Time{})

// column describes one serialized struct field.
type column struct {
	name    string
	index   int
	absent  string
	feature bool
	numeric bool
}

// Schema maps a record struct type to its ordered columns.
type Schema struct {
	typ     reflect.Type
	columns []column
	byName  map[string]int
}

var schemas sync.Map // reflect.Type -> *Schema

// SchemaOf returns the (cached) schema of record type T.
func SchemaOf[T any]() *Schema {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if s, ok := schemas.Load(typ); ok {
		return s.(*Schema)
	}
	s := buildSchema(typ)
	actual, _ := schemas.LoadOrStore(typ, s)
	return actual.(*Schema)
}

func buildSchema(typ reflect.Type) *Schema {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("record: %s is not a struct", typ))
	}
	s := &Schema{typ: typ, byName: make(map[string]int)}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		name := f.Tag.Get("csv")
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		col := column{
			name:    name,
			index:   i,
			absent:  f.Tag.Get("absent"),
			numeric: isNumeric(f.Type),
		}
		col.feature = col.numeric && f.Tag.Get("feature") != "-"
		s.byName[name] = len(s.columns)
		s.columns = append(s.columns, col)
	}
	return s
}

func isNumeric(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
		return true
	}
	return false
}

// Header returns the column names in on-disk order.
func (s *Schema) Header() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.name
	}
	return out
}

// FeatureColumns returns the numeric columns usable as model inputs.
func (s *Schema) FeatureColumns() []string {
	var out []string
	for _, c := range s.columns {
		if c.feature {
			out = append(out, c.name)
		}
	}
	return out
}

// Has reports whether the schema contains a column.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode renders a record as a CSV row.
func Encode[T any](v T) []string {
	s := SchemaOf[T]()
	rv := reflect.ValueOf(v)
	row := make([]string, len(s.columns))
	for i, c := range s.columns {
		row[i] = formatField(rv.Field(c.index), c.absent)
	}
	return row
}

func formatField(fv reflect.Value, absent string) string {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return absent
		}
		fv = fv.Elem()
	}
	if fv.Type() == timeType {
		return fv.Interface().(time.Time).Format(DateLayout)
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10)
	case reflect.Float64:
		return strconv.FormatFloat(fv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool())
	}
	return fmt.Sprint(fv.Interface())
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decoder decodes rows laid out according to a file's header, which may
// order columns differently from the struct or omit optional ones.
type Decoder[T any] struct {
	schema *Schema
	pos    []int // struct column -> file position, -1 if missing
}

// NewDecoder validates header against T's columns. Every non-pointer column
// must be present.
func NewDecoder[T any](header []string) (*Decoder[T], error) {
	s := SchemaOf[T]()
	at := make(map[string]int, len(header))
	for i, h := range header {
		at[h] = i
	}
	d := &Decoder[T]{schema: s, pos: make([]int, len(s.columns))}
	for i, c := range s.columns {
		p, ok := at[c.name]
		if !ok {
			if s.typ.Field(c.index).Type.Kind() != reflect.Pointer {
				return nil, fmt.Errorf("missing required column %q", c.name)
			}
			p = -1
		}
		d.pos[i] = p
	}
	return d, nil
}

// Decode parses one row.
func (d *Decoder[T]) Decode(row []string) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	for i, c := range d.schema.columns {
		p := d.pos[i]
		if p < 0 {
			continue
		}
		if p >= len(row) {
			return out, fmt.Errorf("column %q: row has %d fields", c.name, len(row))
		}
		if err := parseField(rv.Field(c.index), row[p], c.absent); err != nil {
			return out, fmt.Errorf("column %q: %w", c.name, err)
		}
	}
	return out, nil
}

func parseField(fv reflect.Value, raw, absent string) error {
	if fv.Kind() == reflect.Pointer {
		if raw == "" || raw == absent {
			return nil
		}
		ptr := reflect.New(fv.Type().Elem())
		if err := parseScalar(ptr.Elem(), raw); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	return parseScalar(fv, raw)
}

func parseScalar(fv reflect.Value, raw string) error {
	if fv.Type() == timeType {
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// tolerate integral floats written by other tools ("3.0")
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != math.Trunc(f) {
				return err
			}
			n = int64(f)
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

// --------------------------------------------------------------------------
// Numeric access
// --------------------------------------------------------------------------

// Value returns the numeric value of a column; ok is false when the column
// is unknown, non-numeric or absent.
func Value[T any](v T, name string) (float64, bool) {
	s := SchemaOf[T]()
	i, ok := s.byName[name]
	if !ok || !s.columns[i].numeric {
		return 0, false
	}
	fv := reflect.ValueOf(v).Field(s.columns[i].index)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return 0, false
		}
		fv = fv.Elem()
	}
	if fv.Kind() == reflect.Float64 {
		return fv.Float(), true
	}
	return float64(fv.Int()), true
}

// Values returns the named columns of v, with NaN for absent values.
func Values[T any](v T, names []string) []float64 {
	out := make([]float64, len(names))
	for i, n := range names {
		f, ok := Value(v, n)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

// SetValues assigns numeric values to the matching pointer-typed float
// columns of dst and returns how many were set. NaN and unknown names are
// skipped; key columns are never touched.
func SetValues[T any](dst *T, values map[string]float64) int {
	s := SchemaOf[T]()
	rv := reflect.ValueOf(dst).Elem()
	set := 0
	for name, f := range values {
		i, ok := s.byName[name]
		if !ok || math.IsNaN(f) {
			continue
		}
		fv := rv.Field(s.columns[i].index)
		if fv.Kind() != reflect.Pointer || fv.Type().Elem().Kind() != reflect.Float64 {
			continue
		}
		v := f
		fv.Set(reflect.ValueOf(&v))
		set++
	}
	return set
}

package features

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/albapepper/mlb-contract-value/internal/artifact"
	"github.com/albapepper/mlb-contract-value/internal/config"
)

// MinMaxScaler maps each column onto [0, 1] using the minimum and maximum
// seen during Fit. Absent (NaN) values are ignored and stay absent.
type MinMaxScaler struct {
	Columns []string
	Min     []float64
	Max     []float64
}

// Fit computes per-column bounds over m.
func Fit(m *Matrix) *MinMaxScaler {
	s := &MinMaxScaler{
		Columns: append([]string(nil), m.Columns...),
		Min:     make([]float64, len(m.Columns)),
		Max:     make([]float64, len(m.Columns)),
	}
	for j := range m.Columns {
		s.Min[j], s.Max[j] = math.NaN(), math.NaN()
		for _, row := range m.Rows {
			v := row[j]
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(s.Min[j]) || v < s.Min[j] {
				s.Min[j] = v
			}
			if math.IsNaN(s.Max[j]) || v > s.Max[j] {
				s.Max[j] = v
			}
		}
	}
	return s
}

// FitTransform fits a scaler on m, scales m in place and records the
// scaler on m.
func FitTransform(m *Matrix) *MinMaxScaler {
	s := Fit(m)
	for _, row := range m.Rows {
		s.TransformRow(row)
	}
	m.Scaler = s
	return s
}

// Index returns the position of a column.
func (s *MinMaxScaler) Index(name string) (int, bool) {
	for i, c := range s.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// TransformRow scales a full row in place. A constant column maps to 0.
func (s *MinMaxScaler) TransformRow(row []float64) {
	for j := range row {
		row[j] = s.scale(j, row[j])
	}
}

// InverseRow maps a scaled row back to natural units in place.
func (s *MinMaxScaler) InverseRow(row []float64) {
	for j := range row {
		row[j] = s.unscale(j, row[j])
	}
}

// Transform scales one value of the named column.
func (s *MinMaxScaler) Transform(name string, v float64) (float64, error) {
	j, ok := s.Index(name)
	if !ok {
		return 0, fmt.Errorf("scaler: unknown column %q", name)
	}
	return s.scale(j, v), nil
}

// Inverse maps one scaled value of the named column back to natural units.
func (s *MinMaxScaler) Inverse(name string, v float64) (float64, error) {
	j, ok := s.Index(name)
	if !ok {
		return 0, fmt.Errorf("scaler: unknown column %q", name)
	}
	return s.unscale(j, v), nil
}

func (s *MinMaxScaler) scale(j int, v float64) float64 {
	if math.IsNaN(v) || math.IsNaN(s.Min[j]) {
		return math.NaN()
	}
	span := s.Max[j] - s.Min[j]
	if span == 0 {
		return 0
	}
	return (v - s.Min[j]) / span
}

func (s *MinMaxScaler) unscale(j int, v float64) float64 {
	if math.IsNaN(v) || math.IsNaN(s.Min[j]) {
		return math.NaN()
	}
	return v*(s.Max[j]-s.Min[j]) + s.Min[j]
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// ScalerPath returns scalers/{bucket}_scaler.gob.zst under dir.
func ScalerPath(dir string, b Bucket) string {
	return filepath.Join(dir, string(b)+"_scaler"+config.BlobExt)
}

// SaveScaler persists the scaler of a bucket.
func SaveScaler(dir string, b Bucket, s *MinMaxScaler) error {
	if err := artifact.Write(ScalerPath(dir, b), s); err != nil {
		return fmt.Errorf("save %s scaler: %w", b, err)
	}
	return nil
}

// LoadScaler reads the scaler of a bucket.
func LoadScaler(dir string, b Bucket) (*MinMaxScaler, error) {
	var s MinMaxScaler
	found, err := artifact.Read(ScalerPath(dir, b), &s)
	if err != nil {
		return nil, fmt.Errorf("load %s scaler: %w", b, err)
	}
	if !found {
		return nil, fmt.Errorf("load %s scaler: not found in %s", b, dir)
	}
	return &s, nil
}

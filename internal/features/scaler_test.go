package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix() *Matrix {
	return &Matrix{
		Bucket:  PositionPlayer,
		Columns: []string{"value", "HR", "flat"},
		Rows: [][]float64{
			{10, 20, 5},
			{30, math.NaN(), 5},
			{20, 40, 5},
		},
	}
}

func TestFitTransform(t *testing.T) {
	m := matrix()
	s := FitTransform(m)

	assert.Equal(t, []float64{10, 20, 5}, s.Min)
	assert.Equal(t, []float64{30, 40, 5}, s.Max)
	assert.Equal(t, []float64{0, 0, 0}, m.Rows[0])
	assert.Equal(t, 1.0, m.Rows[1][0])
	assert.True(t, math.IsNaN(m.Rows[1][1]))
	assert.Equal(t, []float64{0.5, 1, 0}, m.Rows[2])
}

func TestInverse(t *testing.T) {
	m := matrix()
	s := FitTransform(m)

	row := append([]float64(nil), m.Rows[2]...)
	s.InverseRow(row)
	assert.Equal(t, []float64{20, 40, 5}, row)

	v, err := s.Inverse("value", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	scaled, err := s.Transform("HR", 30)
	require.NoError(t, err)
	assert.Equal(t, 0.5, scaled)

	_, err = s.Inverse("nope", 1)
	assert.Error(t, err)
}

func TestScaler_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := FitTransform(matrix())
	require.NoError(t, SaveScaler(dir, PositionPlayer, s))

	got, err := LoadScaler(dir, PositionPlayer)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = LoadScaler(dir, ReliefPitcher)
	assert.Error(t, err)
}

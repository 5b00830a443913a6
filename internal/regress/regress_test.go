package regress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mlb-contract-value/internal/features"
)

// line builds y = 2x + 1 with a noise column z and one incomplete row.
func line(n int) *features.Matrix {
	m := &features.Matrix{Bucket: features.PositionPlayer, Columns: []string{"x", "z", "value"}}
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		z := math.Mod(float64(i)*0.37, 1)
		m.Rows = append(m.Rows, []float64{x, z, 2*x + 1})
	}
	m.Rows = append(m.Rows, []float64{math.NaN(), 0.5, 3})
	return m
}

func TestSplit_Deterministic(t *testing.T) {
	train1, test1 := Split(50)
	train2, test2 := Split(50)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
	assert.Len(t, test1, 10)
	assert.Len(t, train1, 40)

	seen := map[int]bool{}
	for _, i := range append(train1, test1...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 50)
}

func TestOLS_RecoversLine(t *testing.T) {
	res, err := OLS{}.Fit(line(40), []string{"x"}, "value")
	require.NoError(t, err)
	require.Len(t, res.Model.Coef, 1)
	assert.InDelta(t, 2, res.Model.Coef[0], 1e-6)
	assert.InDelta(t, 1, res.Model.Intercept, 1e-6)
	assert.InDelta(t, 1, res.Metrics[R2], 1e-9)
	assert.InDelta(t, 0, res.Metrics[MSE], 1e-9)
	assert.Equal(t, []string{"x"}, res.Model.Predictors)
	assert.InDelta(t, 4.0, res.Model.Predict([]float64{1.5}), 1e-6)
}

func TestOLS_IgnoresNoiseColumn(t *testing.T) {
	res, err := OLS{}.Fit(line(40), []string{"x", "z"}, "value")
	require.NoError(t, err)
	assert.InDelta(t, 2, res.Model.Coef[0], 1e-6)
	assert.InDelta(t, 0, res.Model.Coef[1], 1e-6)
}

func TestLasso_Shrinks(t *testing.T) {
	small, err := Lasso{Alpha: 1e-4}.Fit(line(40), []string{"x"}, "value")
	require.NoError(t, err)
	assert.InDelta(t, 2, small.Model.Coef[0], 0.01)

	big, err := Lasso{Alpha: 0.9}.Fit(line(40), []string{"x", "z"}, "value")
	require.NoError(t, err)
	assert.Less(t, big.Model.Coef[0], small.Model.Coef[0])
	assert.Equal(t, 0.0, big.Model.Coef[1], "noise column is zeroed")
	assert.Equal(t, 0.9, big.Model.Alpha)
}

func TestSVR_ApproximatesLine(t *testing.T) {
	f, err := ByName(SupportVectorRegr, 0)
	require.NoError(t, err)
	res, err := f.Fit(line(40), []string{"x"}, "value")
	require.NoError(t, err)
	assert.InDelta(t, 2, res.Model.Coef[0], 0.2)
	assert.InDelta(t, 1, res.Model.Intercept, 0.1)
	assert.Greater(t, res.Metrics[R2], 0.9)
}

func TestFit_Errors(t *testing.T) {
	_, err := OLS{}.Fit(line(40), []string{"nope"}, "value")
	assert.Error(t, err)
	_, err = OLS{}.Fit(line(3), []string{"x"}, "value")
	assert.ErrorIs(t, err, ErrTooFewRows)
}

func TestByName(t *testing.T) {
	f, err := ByName(LassoRegression, 0.3)
	require.NoError(t, err)
	assert.Equal(t, LassoRegression, f.Name())
	_, err = ByName(LassoRegression, 0)
	assert.Error(t, err)
	_, err = ByName("random_forest", 0)
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	m := Score([]float64{1, 2, 3}, []float64{1, 2, 5})
	assert.InDelta(t, 4.0/3, m[MSE], 1e-12)
	assert.InDelta(t, 2.0/3, m[MAE], 1e-12)
	assert.InDelta(t, math.Sqrt(4.0/3), m[RMSE], 1e-12)
	assert.True(t, ValidMetric(R2))
	assert.False(t, ValidMetric("aic"))
}

package search

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/regress"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// scoreFitter scores a subset by the sum of fixed per-predictor weights and
// fails any subset containing "bad".
type scoreFitter struct {
	weights map[string]float64
	alpha   float64
	calls   *atomic.Int64
}

func (f scoreFitter) Name() string { return "fake" }

func (f scoreFitter) Fit(_ *features.Matrix, predictors []string, _ string) (regress.Result, error) {
	f.calls.Add(1)
	sum := 0.0
	for _, p := range predictors {
		if p == "bad" {
			return regress.Result{}, errors.New("singular")
		}
		sum += f.weights[p]
	}
	sum -= f.alpha
	return regress.Result{
		Metrics: map[string]float64{regress.R2: sum, regress.MSE: -sum},
		Model:   &regress.Linear{Kind: "fake", Alpha: f.alpha, Predictors: predictors, Coef: make([]float64, len(predictors))},
	}, nil
}

func fakeFitters(weights map[string]float64, calls *atomic.Int64) FitterFunc {
	return func(_ string, alpha float64) (regress.Fitter, error) {
		return scoreFitter{weights: weights, alpha: alpha, calls: calls}, nil
	}
}

func matrix(cols ...string) *features.Matrix {
	return &features.Matrix{Bucket: features.PositionPlayer, Columns: append(cols, "value")}
}

func plan(preds ...string) Plan {
	p := Plan{Label: "pp", Bucket: features.PositionPlayer, Model: regress.LinearRegression, Predictors: preds}
	p.applyDefaults()
	return p
}

func TestRun_EvaluatesEverySubsetAndPicksBest(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	weights := map[string]float64{"a": 1, "b": -2, "c": 3, "d": 0.5}
	d := NewDriver(filepath.Join(dir, "results"), filepath.Join(dir, "best"), 3, fakeFitters(weights, &calls), discard())

	p := plan("a", "b", "c", "d")
	out, err := d.Run(context.Background(), p, matrix("a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Len(t, out.Trials, 15)
	assert.EqualValues(t, 15, calls.Load())
	for i, tr := range out.Trials {
		assert.Equal(t, uint32(i+1), tr.Mask, "trials ordered by mask")
	}
	require.NotNil(t, out.Best)
	assert.Equal(t, []string{"a", "c", "d"}, out.Best.Model.Predictors)
	assert.Equal(t, 4.5, out.Best.Metrics[regress.R2])

	for _, tr := range out.Trials {
		assert.LessOrEqual(t, tr.Metrics[regress.R2], out.Best.Metrics[regress.R2])
	}

	f, err := os.Open(d.ResultsPath(p))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 16)
	assert.Equal(t, []string{"a", "b", "c", "d", "r2", "mse", "mae", "error"}, rows[0])
	assert.Equal(t, []string{"1", "0", "0", "0", "1", "-1", "", ""}, rows[1])

	saved, err := LoadModel(filepath.Join(dir, "best"), "pp", regress.LinearRegression)
	require.NoError(t, err)
	assert.Equal(t, out.Best.Model.Predictors, saved.Model.Predictors)
}

func TestRun_Minimize(t *testing.T) {
	var calls atomic.Int64
	weights := map[string]float64{"a": 1, "b": -2}
	d := NewDriver(t.TempDir(), t.TempDir(), 2, fakeFitters(weights, &calls), discard())

	p := plan("a", "b")
	p.Select, p.Direction = regress.MSE, Minimize
	out, err := d.Run(context.Background(), p, matrix("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Best.Model.Predictors)
}

func TestRun_FailedSubsetsAreRecorded(t *testing.T) {
	var calls atomic.Int64
	d := NewDriver(t.TempDir(), t.TempDir(), 4, fakeFitters(map[string]float64{"a": 1}, &calls), discard())

	out, err := d.Run(context.Background(), plan("a", "bad"), matrix("a", "bad"))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, []string{"a"}, out.Best.Model.Predictors)
	assert.Error(t, out.Trials[1].Err)
}

func TestRun_CachedUnlessOverride(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	weights := map[string]float64{"a": 1, "b": 2}
	d := NewDriver(dir, dir, 2, fakeFitters(weights, &calls), discard())
	p := plan("a", "b")
	m := matrix("a", "b")

	_, err := d.Run(context.Background(), p, m)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())

	out, err := d.Run(context.Background(), p, m)
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Nil(t, out.Trials)
	assert.Equal(t, []string{"a", "b"}, out.Best.Model.Predictors)
	assert.EqualValues(t, 3, calls.Load(), "no refit")

	p.Override = true
	out, err = d.Run(context.Background(), p, m)
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.EqualValues(t, 6, calls.Load())
}

func TestRun_LassoKeepsBestAlpha(t *testing.T) {
	var calls atomic.Int64
	d := NewDriver(t.TempDir(), t.TempDir(), 1, fakeFitters(map[string]float64{"a": 1}, &calls), discard())
	p := plan("a")
	p.Model = regress.LassoRegression
	p.applyDefaults()

	out, err := d.Run(context.Background(), p, matrix("a"))
	require.NoError(t, err)
	assert.EqualValues(t, len(DefaultAlphas), calls.Load())
	assert.Equal(t, 0.1, out.Trials[0].Alpha)

	rows := readAll(t, d.ResultsPath(p))
	assert.Equal(t, "alpha", rows[0][len(rows[0])-2])
}

func TestRun_UnknownColumn(t *testing.T) {
	var calls atomic.Int64
	d := NewDriver(t.TempDir(), t.TempDir(), 1, fakeFitters(nil, &calls), discard())
	_, err := d.Run(context.Background(), plan("a", "zz"), matrix("a"))
	assert.ErrorContains(t, err, "zz")
}

func TestRun_Cancelled(t *testing.T) {
	var calls atomic.Int64
	d := NewDriver(t.TempDir(), t.TempDir(), 2, fakeFitters(nil, &calls), discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, plan("a", "b"), matrix("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestRun_WithRealFitter(t *testing.T) {
	m := &features.Matrix{Bucket: features.PositionPlayer, Columns: []string{"x", "z", "value"}}
	for i := 0; i < 30; i++ {
		x := float64(i) / 29
		m.Rows = append(m.Rows, []float64{x, float64(i%7) / 7, 3*x + 0.5})
	}
	d := NewDriver(t.TempDir(), t.TempDir(), 2, nil, discard())
	out, err := d.Run(context.Background(), plan("x", "z"), m)
	require.NoError(t, err)
	assert.Contains(t, out.Best.Model.Predictors, "x")
	assert.InDelta(t, 1, out.Best.Metrics[regress.R2], 1e-6)
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestParsePlans(t *testing.T) {
	src := `
plans:
  - label: sp
    bucket: starting_pitcher
    model: lasso_regression
    predictors: [age, WAR, FIP]
  - label: pp
    bucket: position_player
    model: linear_regression
    predictors: [age, wRC+]
    metrics: [mse, r2]
`
	plans, err := ParsePlans(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, DefaultAlphas, plans[0].Alphas)
	assert.Equal(t, regress.R2, plans[0].Select)
	assert.Equal(t, Maximize, plans[0].Direction)
	assert.Equal(t, "value", plans[0].Target)
	assert.Equal(t, regress.MSE, plans[1].Select)
	assert.Equal(t, Minimize, plans[1].Direction)
	assert.Empty(t, plans[1].Alphas)
}

func TestParsePlans_Invalid(t *testing.T) {
	cases := map[string]string{
		"bucket":    "plans: [{label: x, bucket: closer, model: linear_regression, predictors: [a]}]",
		"model":     "plans: [{label: x, bucket: relief_pitcher, model: forest, predictors: [a]}]",
		"metric":    "plans: [{label: x, bucket: relief_pitcher, model: linear_regression, predictors: [a], metrics: [aic]}]",
		"target":    "plans: [{label: x, bucket: relief_pitcher, model: linear_regression, predictors: [value]}]",
		"empty":     "plans: [{label: x, bucket: relief_pitcher, model: linear_regression}]",
		"unknown":   "plans: [{label: x, bucket: relief_pitcher, model: linear_regression, predictors: [a], color: red}]",
		"direction": "plans: [{label: x, bucket: relief_pitcher, model: linear_regression, predictors: [a], direction: up}]",
	}
	for name, src := range cases {
		_, err := ParsePlans(strings.NewReader(src))
		assert.Error(t, err, name)
	}

	many := make([]string, MaxPredictors+1)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	_, err := ParsePlans(strings.NewReader("plans: [{label: x, bucket: relief_pitcher, model: linear_regression, predictors: [" + strings.Join(many, ", ") + "]}]"))
	assert.Error(t, err)
}

func TestRun_CachedModelKeepsItsScaler(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	d := NewDriver(dir, dir, 1, fakeFitters(map[string]float64{"a": 1}, &calls), discard())
	p := plan("a")

	first := matrix("a")
	first.Rows = [][]float64{{0, 1}, {10, 41}}
	features.FitTransform(first)
	_, err := d.Run(context.Background(), p, first)
	require.NoError(t, err)

	// more contracts arrive and the bucket is rescaled
	second := matrix("a")
	second.Rows = [][]float64{{0, 1}, {10, 41}, {20, 301}}
	features.FitTransform(second)
	out, err := d.Run(context.Background(), p, second)
	require.NoError(t, err)
	require.True(t, out.Cached)
	require.NotNil(t, out.Best.Scaler)
	assert.Equal(t, []float64{10, 41}, out.Best.Scaler.Max)
	assert.Equal(t, []float64{20, 301}, second.Scaler.Max)
}

// Package regress fits linear models on feature matrices and scores them on
// a held-out split. Three fitters share one model shape: ordinary least
// squares, lasso and a linear epsilon-insensitive support vector regressor.
package regress

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/albapepper/mlb-contract-value/internal/features"
)

// Fitter names.
const (
	LinearRegression  = "linear_regression"
	LassoRegression   = "lasso_regression"
	SupportVectorRegr = "support_vector_regression"
)

// Metric names.
const (
	MSE  = "mse"
	RMSE = "rmse"
	MAE  = "mae"
	R2   = "r2"
)

// Seed and TestFraction fix the train/test split.
const (
	Seed         = 116
	TestFraction = 0.2
)

// ErrTooFewRows is returned when a subset leaves too few complete rows to
// fit and score.
var ErrTooFewRows = errors.New("too few complete rows")

// Linear is a fitted linear model over named predictors.
type Linear struct {
	Kind       string
	Alpha      float64
	Predictors []string
	Coef       []float64
	Intercept  float64
}

// Predict evaluates the model on x, ordered like Predictors.
func (l *Linear) Predict(x []float64) float64 {
	return floats.Dot(l.Coef, x) + l.Intercept
}

// Result is a fitted model and its held-out scores.
type Result struct {
	Metrics map[string]float64
	Model   *Linear
}

// Fitter fits a model of target on predictors and scores it.
type Fitter interface {
	Name() string
	Fit(m *features.Matrix, predictors []string, target string) (Result, error)
}

// ValidMetric reports whether name is a known metric.
func ValidMetric(name string) bool {
	switch name {
	case MSE, RMSE, MAE, R2:
		return true
	}
	return false
}

// ByName returns the fitter registered under name. alpha applies to lasso.
func ByName(name string, alpha float64) (Fitter, error) {
	switch name {
	case LinearRegression:
		return OLS{}, nil
	case LassoRegression:
		if alpha <= 0 {
			return nil, fmt.Errorf("%s: alpha must be positive, got %v", name, alpha)
		}
		return Lasso{Alpha: alpha}, nil
	case SupportVectorRegr:
		return SVR{Epsilon: 0.01, Lambda: 1e-3, Epochs: 3000}, nil
	default:
		return nil, fmt.Errorf("unknown model %q", name)
	}
}

// --------------------------------------------------------------------------
// Data preparation
// --------------------------------------------------------------------------

// design holds the complete rows of a predictor subset.
type design struct {
	x [][]float64
	y []float64
}

func prepare(m *features.Matrix, predictors []string, target string) (design, error) {
	cols := make([]int, len(predictors))
	for i, p := range predictors {
		j, ok := m.Index(p)
		if !ok {
			return design{}, fmt.Errorf("unknown predictor %q", p)
		}
		cols[i] = j
	}
	tj, ok := m.Index(target)
	if !ok {
		return design{}, fmt.Errorf("unknown target %q", target)
	}

	var d design
rows:
	for _, row := range m.Rows {
		if math.IsNaN(row[tj]) {
			continue
		}
		x := make([]float64, len(cols))
		for i, j := range cols {
			if math.IsNaN(row[j]) {
				continue rows
			}
			x[i] = row[j]
		}
		d.x = append(d.x, x)
		d.y = append(d.y, row[tj])
	}
	return d, nil
}

// Split returns the train and test row indices of n rows. The permutation
// is seeded, so the split of a given n never changes.
func Split(n int) (train, test []int) {
	perm := rand.New(rand.NewPCG(Seed, 0)).Perm(n)
	nTest := int(math.Ceil(float64(n) * TestFraction))
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test
}

func (d design) subset(idx []int) design {
	out := design{x: make([][]float64, len(idx)), y: make([]float64, len(idx))}
	for k, i := range idx {
		out.x[k] = d.x[i]
		out.y[k] = d.y[i]
	}
	return out
}

// fitAndScore prepares the data, fits on the train split and scores on the
// test split.
func fitAndScore(m *features.Matrix, predictors []string, target string, fit func(design) (*Linear, error)) (Result, error) {
	d, err := prepare(m, predictors, target)
	if err != nil {
		return Result{}, err
	}
	if len(d.y) < 5 {
		return Result{}, fmt.Errorf("%w: %d", ErrTooFewRows, len(d.y))
	}
	trainIdx, testIdx := Split(len(d.y))
	train, test := d.subset(trainIdx), d.subset(testIdx)

	model, err := fit(train)
	if err != nil {
		return Result{}, err
	}
	model.Predictors = append([]string(nil), predictors...)

	pred := make([]float64, len(test.y))
	for i, x := range test.x {
		pred[i] = model.Predict(x)
	}
	return Result{Metrics: Score(pred, test.y), Model: model}, nil
}

// Score computes every metric of predictions against observed values.
func Score(pred, obs []float64) map[string]float64 {
	var se, ae float64
	for i := range obs {
		e := obs[i] - pred[i]
		se += e * e
		ae += math.Abs(e)
	}
	n := float64(len(obs))
	return map[string]float64{
		MSE:  se / n,
		RMSE: math.Sqrt(se / n),
		MAE:  ae / n,
		R2:   stat.RSquaredFrom(pred, obs, nil),
	}
}

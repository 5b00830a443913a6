package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/albapepper/mlb-contract-value/internal/features"
)

// ridge keeps the normal equations solvable when predictors are collinear.
const ridge = 1e-8

// --------------------------------------------------------------------------
// Ordinary least squares
// --------------------------------------------------------------------------

// OLS fits ordinary least squares through the normal equations.
type OLS struct{}

func (OLS) Name() string { return LinearRegression }

func (o OLS) Fit(m *features.Matrix, predictors []string, target string) (Result, error) {
	return fitAndScore(m, predictors, target, o.fit)
}

func (OLS) fit(d design) (*Linear, error) {
	n, p := len(d.y), len(d.x[0])

	// Column 0 is the intercept.
	x := mat.NewDense(n, p+1, nil)
	for i, row := range d.x {
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, d.y)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j <= p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j + 1)
	}
	return &Linear{Kind: LinearRegression, Coef: coef, Intercept: beta.AtVec(0)}, nil
}

// --------------------------------------------------------------------------
// Lasso
// --------------------------------------------------------------------------

// Lasso minimizes (1/2n)||y - Xb - c||^2 + Alpha*||b||_1 by cyclic
// coordinate descent on centered data.
type Lasso struct {
	Alpha float64
}

const (
	lassoMaxIter = 1000
	lassoTol     = 1e-6
)

func (Lasso) Name() string { return LassoRegression }

func (l Lasso) Fit(m *features.Matrix, predictors []string, target string) (Result, error) {
	return fitAndScore(m, predictors, target, l.fit)
}

func (l Lasso) fit(d design) (*Linear, error) {
	n, p := len(d.y), len(d.x[0])
	nf := float64(n)

	xMean := make([]float64, p)
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
		for i := range d.x {
			cols[j][i] = d.x[i][j]
		}
		xMean[j] = stat.Mean(cols[j], nil)
		floats.AddConst(-xMean[j], cols[j])
	}
	yMean := stat.Mean(d.y, nil)
	resid := make([]float64, n)
	for i, v := range d.y {
		resid[i] = v - yMean
	}

	norms := make([]float64, p)
	for j := range cols {
		norms[j] = floats.Dot(cols[j], cols[j]) / nf
	}

	coef := make([]float64, p)
	for iter := 0; iter < lassoMaxIter; iter++ {
		maxDelta := 0.0
		for j := range coef {
			if norms[j] == 0 {
				continue
			}
			old := coef[j]
			rho := floats.Dot(cols[j], resid)/nf + norms[j]*old
			coef[j] = softThreshold(rho, l.Alpha) / norms[j]
			if delta := coef[j] - old; delta != 0 {
				floats.AddScaled(resid, -delta, cols[j])
				maxDelta = math.Max(maxDelta, math.Abs(delta))
			}
		}
		if maxDelta < lassoTol {
			break
		}
	}

	intercept := yMean - floats.Dot(coef, xMean)
	return &Linear{Kind: LassoRegression, Alpha: l.Alpha, Coef: coef, Intercept: intercept}, nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Linear support vector regression
// --------------------------------------------------------------------------

// SVR minimizes Lambda/2*||w||^2 + mean(max(0, |y - f(x)| - Epsilon)) by
// full-batch subgradient descent with a 1/sqrt(t) step.
type SVR struct {
	Epsilon float64
	Lambda  float64
	Epochs  int
}

const svrStep = 0.5

func (SVR) Name() string { return SupportVectorRegr }

func (s SVR) Fit(m *features.Matrix, predictors []string, target string) (Result, error) {
	return fitAndScore(m, predictors, target, s.fit)
}

func (s SVR) fit(d design) (*Linear, error) {
	n, p := len(d.y), len(d.x[0])
	nf := float64(n)
	w := make([]float64, p)
	gw := make([]float64, p)
	var b float64

	for t := 1; t <= s.Epochs; t++ {
		for j := range gw {
			gw[j] = s.Lambda * w[j]
		}
		var gb float64
		for i, x := range d.x {
			r := d.y[i] - (floats.Dot(w, x) + b)
			if math.Abs(r) <= s.Epsilon {
				continue
			}
			sign := 1.0
			if r < 0 {
				sign = -1
			}
			floats.AddScaled(gw, -sign/nf, x)
			gb -= sign / nf
		}
		step := svrStep / math.Sqrt(float64(t))
		floats.AddScaled(w, -step, gw)
		b -= step * gb
	}
	return &Linear{Kind: SupportVectorRegr, Coef: w, Intercept: b}, nil
}

package search

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/regress"
)

// MaxPredictors bounds the subset enumeration to 2^20-1 trials.
const MaxPredictors = 20

// Selection directions.
const (
	Maximize = "max"
	Minimize = "min"
)

// DefaultAlphas are the lasso penalties tried for each subset when a plan
// names none.
var DefaultAlphas = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// Plan describes one exhaustive predictor-subset search.
type Plan struct {
	Label      string          `yaml:"label"`
	Bucket     features.Bucket `yaml:"bucket"`
	Model      string          `yaml:"model"`
	Predictors []string        `yaml:"predictors"`
	Target     string          `yaml:"target"`
	Metrics    []string        `yaml:"metrics"`
	Select     string          `yaml:"select"`
	Direction  string          `yaml:"direction"`
	Alphas     []float64       `yaml:"alphas"`
	Override   bool            `yaml:"override"`
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads a YAML plan file.
func LoadPlans(path string) ([]Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plans: %w", err)
	}
	defer f.Close()
	plans, err := ParsePlans(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plans, nil
}

// ParsePlans decodes, defaults and validates plans.
func ParsePlans(r io.Reader) ([]Plan, error) {
	var pf planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	seen := make(map[string]bool)
	for i := range pf.Plans {
		p := &pf.Plans[i]
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plan %d: %w", i, err)
		}
		if seen[p.Name()] {
			return nil, fmt.Errorf("plan %d: duplicate %s", i, p.Name())
		}
		seen[p.Name()] = true
	}
	return pf.Plans, nil
}

func (p *Plan) applyDefaults() {
	if p.Target == "" {
		p.Target = "value"
	}
	if len(p.Metrics) == 0 {
		p.Metrics = []string{regress.R2, regress.MSE, regress.MAE}
	}
	if p.Select == "" {
		p.Select = p.Metrics[0]
	}
	if p.Direction == "" {
		p.Direction = Minimize
		if p.Select == regress.R2 {
			p.Direction = Maximize
		}
	}
	if p.Model == regress.LassoRegression && len(p.Alphas) == 0 {
		p.Alphas = append([]float64(nil), DefaultAlphas...)
	}
}

// Validate checks a plan before any fitting starts.
func (p Plan) Validate() error {
	if p.Label == "" {
		return errors.New("missing label")
	}
	if _, err := features.ParseBucket(string(p.Bucket)); err != nil {
		return err
	}
	if _, err := regress.ByName(p.Model, 1); err != nil {
		return err
	}
	if n := len(p.Predictors); n == 0 || n > MaxPredictors {
		return fmt.Errorf("%s: need 1..%d predictors, got %d", p.Label, MaxPredictors, n)
	}
	dup := make(map[string]bool, len(p.Predictors))
	for _, name := range p.Predictors {
		if name == p.Target {
			return fmt.Errorf("%s: target %q listed as predictor", p.Label, name)
		}
		if dup[name] {
			return fmt.Errorf("%s: duplicate predictor %q", p.Label, name)
		}
		dup[name] = true
	}
	for _, m := range p.Metrics {
		if !regress.ValidMetric(m) {
			return fmt.Errorf("%s: unknown metric %q", p.Label, m)
		}
	}
	if !contains(p.Metrics, p.Select) {
		return fmt.Errorf("%s: selection metric %q is not among the metrics", p.Label, p.Select)
	}
	if p.Direction != Maximize && p.Direction != Minimize {
		return fmt.Errorf("%s: direction must be %q or %q", p.Label, Maximize, Minimize)
	}
	for _, a := range p.Alphas {
		if a <= 0 {
			return fmt.Errorf("%s: alpha must be positive, got %v", p.Label, a)
		}
	}
	return nil
}

// Name is the file stem of the plan's outputs.
func (p Plan) Name() string { return p.Label + "_" + p.Model }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

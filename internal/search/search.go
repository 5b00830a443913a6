// Package search runs exhaustive predictor-subset searches: every non-empty
// subset of a plan's predictors is fitted and scored, the best subset is
// selected by one metric, and the result table and winning model are saved.
package search

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/albapepper/mlb-contract-value/internal/artifact"
	"github.com/albapepper/mlb-contract-value/internal/config"
	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/regress"
)

// FitterFunc returns the fitter of a model name and penalty.
type FitterFunc func(model string, alpha float64) (regress.Fitter, error)

// Trial is the outcome of one predictor subset.
type Trial struct {
	Mask       uint32
	Predictors []string
	Metrics    map[string]float64
	Alpha      float64
	Err        error

	model *regress.Linear
}

// Includes reports whether predictor i of the plan is in the subset.
func (t Trial) Includes(i int) bool { return t.Mask&(1<<uint(i)) != 0 }

// ErrModelNotFound is returned by LoadModel when no best model was saved.
var ErrModelNotFound = errors.New("model not found")

// SavedModel is the blob persisted for a plan's winning subset. Scaler is
// the bucket scaler in force when the model was fitted.
type SavedModel struct {
	Label   string
	Bucket  features.Bucket
	Target  string
	Metrics map[string]float64
	Model   *regress.Linear
	Scaler  *features.MinMaxScaler
}

// Outcome is the result of running one plan.
type Outcome struct {
	Plan    Plan
	Trials  []Trial // nil when the saved result was reused
	Best    *SavedModel
	Cached  bool
	Failed  int
	Elapsed time.Duration
}

// Driver runs plans against feature matrices.
type Driver struct {
	resultsDir string
	modelDir   string
	workers    int
	fitters    FitterFunc
	logger     *slog.Logger
}

// NewDriver creates a driver writing result tables to resultsDir and best
// models to modelDir. A nil fitters uses regress.ByName.
func NewDriver(resultsDir, modelDir string, workers int, fitters FitterFunc, logger *slog.Logger) *Driver {
	if fitters == nil {
		fitters = regress.ByName
	}
	if workers < 1 {
		workers = 1
	}
	return &Driver{resultsDir: resultsDir, modelDir: modelDir, workers: workers, fitters: fitters, logger: logger}
}

// ResultsPath returns model_results/{label}_{model}.csv.
func (d *Driver) ResultsPath(p Plan) string {
	return filepath.Join(d.resultsDir, p.Name()+config.TableExt)
}

// ModelPath returns best_model/{label}_{model}.gob.zst.
func (d *Driver) ModelPath(p Plan) string {
	return ModelPath(d.modelDir, p.Label, p.Model)
}

// ModelPath returns the best-model blob path of a label and model name.
func ModelPath(dir, label, model string) string {
	return filepath.Join(dir, label+"_"+model+config.BlobExt)
}

// LoadModel reads a saved best model.
func LoadModel(dir, label, model string) (*SavedModel, error) {
	var sm SavedModel
	found, err := artifact.Read(ModelPath(dir, label, model), &sm)
	if err != nil {
		return nil, fmt.Errorf("load model %s_%s: %w", label, model, err)
	}
	if !found {
		return nil, fmt.Errorf("load model %s_%s: %w", label, model, ErrModelNotFound)
	}
	return &sm, nil
}

// Run searches every predictor subset of p on m. When a result table for
// the plan already exists and p.Override is unset, the saved model is
// returned without refitting.
func (d *Driver) Run(ctx context.Context, p Plan, m *features.Matrix) (Outcome, error) {
	start := time.Now()
	out := Outcome{Plan: p}

	if err := p.Validate(); err != nil {
		return out, err
	}
	if !p.Override && artifact.Exists(d.ResultsPath(p)) {
		sm, err := LoadModel(d.modelDir, p.Label, p.Model)
		if err == nil {
			out.Best, out.Cached = sm, true
			d.logger.Info("Search skipped, results exist", "plan", p.Name(), "path", d.ResultsPath(p))
			return out, nil
		}
		d.logger.Warn("Result table without model, searching again", "plan", p.Name(), "error", err)
	}
	for _, name := range append([]string{p.Target}, p.Predictors...) {
		if _, ok := m.Index(name); !ok {
			return out, fmt.Errorf("%s: column %q not in %s matrix", p.Name(), name, m.Bucket)
		}
	}

	d.logger.Info("Search started", "plan", p.Name(), "bucket", p.Bucket,
		"predictors", len(p.Predictors), "subsets", (1<<len(p.Predictors))-1, "rows", m.Len())
	out.Trials = d.evaluate(ctx, p, m)
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("%s: %w", p.Name(), err)
	}

	best := -1
	for i, t := range out.Trials {
		if t.Err != nil {
			out.Failed++
			continue
		}
		if better(p, t, out.Trials, best) {
			best = i
		}
	}

	if err := d.writeResults(p, out.Trials); err != nil {
		return out, err
	}
	if best < 0 {
		return out, fmt.Errorf("%s: no subset could be fitted (%d failures)", p.Name(), out.Failed)
	}

	bt := out.Trials[best]
	out.Best = &SavedModel{Label: p.Label, Bucket: p.Bucket, Target: p.Target, Metrics: bt.Metrics, Model: bt.model, Scaler: m.Scaler}
	if err := artifact.Write(d.ModelPath(p), out.Best); err != nil {
		return out, fmt.Errorf("save best model %s: %w", p.Name(), err)
	}
	out.Elapsed = time.Since(start)
	d.logger.Info("Search complete", "plan", p.Name(),
		"best", bt.Predictors, p.Select, bt.Metrics[p.Select],
		"failed", out.Failed, "duration", out.Elapsed.Round(time.Millisecond))
	return out, nil
}

// better reports whether t beats the current best under the plan's
// selection metric. Ties keep the earlier subset.
func better(p Plan, t Trial, trials []Trial, best int) bool {
	v, ok := t.Metrics[p.Select]
	if !ok || math.IsNaN(v) {
		return false
	}
	if best < 0 {
		return true
	}
	cur := trials[best].Metrics[p.Select]
	if p.Direction == Minimize {
		return v < cur
	}
	return v > cur
}

// --------------------------------------------------------------------------
// Evaluation
// --------------------------------------------------------------------------

// evaluate fits every subset on a bounded worker pool. Trials are returned
// ordered by mask.
func (d *Driver) evaluate(ctx context.Context, p Plan, m *features.Matrix) []Trial {
	total := (1 << len(p.Predictors)) - 1
	trials := make([]Trial, total)

	workers := min(d.workers, total)
	ch := make(chan uint32, total)
	for mask := uint32(1); mask <= uint32(total); mask++ {
		ch <- mask
	}
	close(ch)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mask := range ch {
				trials[mask-1] = d.trial(ctx, p, m, mask)
			}
		}()
	}
	wg.Wait()
	return trials
}

// trial fits one subset. Lasso plans try every alpha and keep the best.
func (d *Driver) trial(ctx context.Context, p Plan, m *features.Matrix, mask uint32) Trial {
	t := Trial{Mask: mask}
	for i, name := range p.Predictors {
		if t.Includes(i) {
			t.Predictors = append(t.Predictors, name)
		}
	}
	if err := ctx.Err(); err != nil {
		t.Err = err
		return t
	}

	alphas := p.Alphas
	if len(alphas) == 0 {
		alphas = []float64{0}
	}
	var candidates []Trial
	var lastErr error
	for _, alpha := range alphas {
		f, err := d.fitters(p.Model, alpha)
		if err != nil {
			lastErr = err
			continue
		}
		res, err := f.Fit(m, t.Predictors, p.Target)
		if err != nil {
			lastErr = err
			continue
		}
		c := t
		c.Metrics, c.Alpha, c.model = res.Metrics, alpha, res.Model
		candidates = append(candidates, c)
	}

	best := -1
	for i, c := range candidates {
		if better(p, c, candidates, best) {
			best = i
		}
	}
	if best < 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("selection metric %q undefined", p.Select)
		}
		t.Err = lastErr
		return t
	}
	return candidates[best]
}

// --------------------------------------------------------------------------
// Result table
// --------------------------------------------------------------------------

func (d *Driver) writeResults(p Plan, trials []Trial) error {
	path := d.ResultsPath(p)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	lasso := len(p.Alphas) > 0
	header := append(append([]string(nil), p.Predictors...), p.Metrics...)
	if lasso {
		header = append(header, "alpha")
	}
	header = append(header, "error")

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, t := range trials {
		row := make([]string, 0, len(header))
		for i := range p.Predictors {
			if t.Includes(i) {
				row = append(row, "1")
			} else {
				row = append(row, "0")
			}
		}
		for _, name := range p.Metrics {
			v, ok := t.Metrics[name]
			if !ok || math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if lasso {
			if t.Err != nil {
				row = append(row, "")
			} else {
				row = append(row, strconv.FormatFloat(t.Alpha, 'f', -1, 64))
			}
		}
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		row = append(row, errText)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

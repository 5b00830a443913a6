// Package predict estimates contract value in natural units from a saved
// best model and the scaler it was fitted under.
package predict

import (
	"fmt"
	"math"

	"github.com/albapepper/mlb-contract-value/internal/features"
	"github.com/albapepper/mlb-contract-value/internal/search"
)

// Predictor pairs a saved model with the scaler fitted on its bucket.
type Predictor struct {
	model  *search.SavedModel
	scaler *features.MinMaxScaler
}

// New checks that the scaler covers every column the model needs.
func New(model *search.SavedModel, scaler *features.MinMaxScaler) (*Predictor, error) {
	if model == nil || model.Model == nil {
		return nil, fmt.Errorf("predict: no model")
	}
	for _, name := range append([]string{model.Target}, model.Model.Predictors...) {
		if _, ok := scaler.Index(name); !ok {
			return nil, fmt.Errorf("predict: scaler for %s has no column %q", model.Bucket, name)
		}
	}
	return &Predictor{model: model, scaler: scaler}, nil
}

// Load reads the best model of label/model. The scaler saved with the model
// wins; the bucket scaler file is read only for models saved without one.
func Load(modelDir, scalerDir, label, model string) (*Predictor, error) {
	sm, err := search.LoadModel(modelDir, label, model)
	if err != nil {
		return nil, err
	}
	if sm.Scaler != nil {
		return New(sm, sm.Scaler)
	}
	sc, err := features.LoadScaler(scalerDir, sm.Bucket)
	if err != nil {
		return nil, err
	}
	return New(sm, sc)
}

// Predictors lists the inputs Predict needs.
func (p *Predictor) Predictors() []string {
	return append([]string(nil), p.model.Model.Predictors...)
}

// Predict scales the natural-unit inputs, evaluates the model and returns
// the target in natural units (millions for contract value).
func (p *Predictor) Predict(inputs map[string]float64) (float64, error) {
	x := make([]float64, len(p.model.Model.Predictors))
	for i, name := range p.model.Model.Predictors {
		v, ok := inputs[name]
		if !ok || math.IsNaN(v) {
			return 0, fmt.Errorf("predict: missing input %q", name)
		}
		scaled, err := p.scaler.Transform(name, v)
		if err != nil {
			return 0, err
		}
		x[i] = scaled
	}
	return p.scaler.Inverse(p.model.Target, p.model.Model.Predict(x))
}

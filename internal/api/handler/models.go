package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/mlb-contract-value/internal/api/respond"
	"github.com/albapepper/mlb-contract-value/internal/cache"
	"github.com/albapepper/mlb-contract-value/internal/predict"
	"github.com/albapepper/mlb-contract-value/internal/search"
)

// modelView is the JSON shape of a saved best model.
type modelView struct {
	Label      string             `json:"label"`
	Model      string             `json:"model"`
	Bucket     string             `json:"bucket"`
	Target     string             `json:"target"`
	Predictors []string           `json:"predictors"`
	Coef       []float64          `json:"coefficients"`
	Intercept  float64            `json:"intercept"`
	Alpha      float64            `json:"alpha,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// GetModel returns the saved best model of a search plan.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	model := chi.URLParam(r, "model")

	h.cached(w, r, "model:"+label+":"+model, cache.TTLModel, "No saved model for "+label+"/"+model, func() ([]byte, error) {
		sm, err := search.LoadModel(h.cfg.BestModelDir, label, model)
		if err != nil {
			return nil, err
		}
		metrics := make(map[string]float64, len(sm.Metrics))
		for k, v := range sm.Metrics {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				metrics[k] = v
			}
		}
		return json.Marshal(modelView{
			Label:      sm.Label,
			Model:      model,
			Bucket:     string(sm.Bucket),
			Target:     sm.Target,
			Predictors: sm.Model.Predictors,
			Coef:       sm.Model.Coef,
			Intercept:  sm.Model.Intercept,
			Alpha:      sm.Model.Alpha,
			Metrics:    metrics,
		})
	})
}

// PredictRequest is the body of POST /api/v1/predict. Inputs are in
// natural units.
type PredictRequest struct {
	Label  string             `json:"label"`
	Model  string             `json:"model"`
	Inputs map[string]float64 `json:"inputs"`
}

// Predict estimates a contract value in millions with a saved best model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}
	if req.Label == "" || req.Model == "" {
		respond.Error(w, http.StatusBadRequest, "MISSING_MODEL", "label and model are required")
		return
	}

	key := req.Label + ":" + req.Model
	p, ok := h.predictors.Get(key)
	if !ok {
		var err error
		p, err = predict.Load(h.cfg.BestModelDir, h.cfg.ScalerDir, req.Label, req.Model)
		if errors.Is(err, search.ErrModelNotFound) {
			respond.ErrorDetail(w, http.StatusNotFound, "NOT_FOUND", "No saved model for "+key, err.Error())
			return
		}
		if err != nil {
			respond.ErrorDetail(w, http.StatusInternalServerError, "MODEL_LOAD_FAILED", "Could not load model "+key, err.Error())
			return
		}
		h.predictors.Set(key, p, cache.TTLModel)
	}

	value, err := p.Predict(req.Inputs)
	if err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "INVALID_INPUTS", "Missing model inputs", err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"label":      req.Label,
		"model":      req.Model,
		"value":      value,
		"unit":       "millions",
		"predictors": p.Predictors(),
	})
}

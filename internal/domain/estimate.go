package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GregoryConfig selects the experiments and window for a Gregory estimate.
type GregoryConfig struct {
	Reference   ExperimentID // control run supplying the baseline, e.g. piControl
	Forced      ExperimentID // step-forcing run that is regressed, e.g. abrupt-4xCO2
	WindowStart int          // first relative year of the fit
	WindowYears int          // number of years in the fit
	Doublings   float64      // log2 of the forced experiment's CO2 multiple; 0 means DefaultDoublings
}

// Estimate is the published equilibrium climate sensitivity of one model.
type Estimate struct {
	ID           string       `json:"id"`
	SourceID     ModelID      `json:"source_id"`
	ExperimentID ExperimentID `json:"experiment_id"`
	ReferenceID  ExperimentID `json:"reference_experiment_id"`
	Sensitivity  float64      `json:"sensitivity"`
	Slope        float64      `json:"slope"`
	Intercept    float64      `json:"intercept"`
	Observations int          `json:"observations"`
	Doublings    float64      `json:"doublings"`
	WindowStart  int          `json:"window_start"`
	WindowYears  int          `json:"window_years"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

// EstimateModel runs baseline subtraction, windowing and the Gregory fit for
// a single model. It reads only that model's runs.
func EstimateModel(model ModelID, runs map[ExperimentID]Run, cfg GregoryConfig) (Estimate, error) {
	if _, ok := runs[cfg.Forced]; !ok {
		return Estimate{}, &MissingExperimentError{Model: model, Experiment: cfg.Forced}
	}
	anoms, err := Anomalies(model, runs, cfg.Reference, cfg.Forced)
	if err != nil {
		return Estimate{}, err
	}
	forced := anoms[cfg.Forced]

	tas := Window(forced.Tas, cfg.WindowStart, cfg.WindowYears)
	imb := Window(forced.Imbalance, cfg.WindowStart, cfg.WindowYears)

	est := Estimator{Doublings: cfg.Doublings}
	reg, err := est.Estimate(tas, imb)
	if err != nil {
		return Estimate{}, fmt.Errorf("model %s: %w", model, err)
	}

	doublings := cfg.Doublings
	if doublings == 0 {
		doublings = DefaultDoublings
	}
	return Estimate{
		ID:           generateID(model, cfg.Forced, cfg.Reference, cfg.WindowStart, cfg.WindowYears),
		SourceID:     model,
		ExperimentID: cfg.Forced,
		ReferenceID:  cfg.Reference,
		Sensitivity:  reg.Sensitivity,
		Slope:        reg.Slope,
		Intercept:    reg.Intercept,
		Observations: reg.Observations,
		Doublings:    doublings,
		WindowStart:  cfg.WindowStart,
		WindowYears:  cfg.WindowYears,
		ProcessedAt:  clock.Now().UTC(),
	}, nil
}

// generateID derives a deterministic estimate ID from the model and the fit
// setup, so re-estimating the same model yields the same key downstream.
func generateID(model ModelID, forced, reference ExperimentID, start, years int) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%d", model, forced, reference, start, years)
	hash := sha256.Sum256([]byte(input))
	return string(model) + "-" + hex.EncodeToString(hash[:8])
}

package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Baseline is a model's control-run mean temperature and imbalance.
type Baseline struct {
	Tas       float64
	Imbalance float64
}

// AnomalySeries holds temperature and imbalance anomalies for one experiment,
// indexed by relative year.
type AnomalySeries struct {
	Tas       []float64
	Imbalance []float64
}

// ComputeBaseline averages tas and imbalance over every year of the model's
// reference experiment. Each model is its own reference; baselines are never
// pooled across models.
func ComputeBaseline(model ModelID, runs map[ExperimentID]Run, reference ExperimentID) (Baseline, error) {
	ref, ok := runs[reference]
	if !ok {
		return Baseline{}, &MissingExperimentError{Model: model, Experiment: reference}
	}
	tas, imb, err := runSeries(model, reference, ref)
	if err != nil {
		return Baseline{}, err
	}

	tasMean, err := nanMean(tas)
	if err != nil {
		return Baseline{}, fmt.Errorf("model %s: %s %s baseline: %w", model, reference, VarTas, err)
	}
	imbMean, err := nanMean(imb)
	if err != nil {
		return Baseline{}, fmt.Errorf("model %s: %s %s baseline: %w", model, reference, VarImbalance, err)
	}
	return Baseline{Tas: tasMean, Imbalance: imbMean}, nil
}

// Anomalies subtracts the model's reference-experiment baseline from every
// listed experiment (all of runs when none are listed).
func Anomalies(model ModelID, runs map[ExperimentID]Run, reference ExperimentID, experiments ...ExperimentID) (map[ExperimentID]AnomalySeries, error) {
	base, err := ComputeBaseline(model, runs, reference)
	if err != nil {
		return nil, err
	}
	if len(experiments) == 0 {
		for id := range runs {
			experiments = append(experiments, id)
		}
	}

	out := make(map[ExperimentID]AnomalySeries, len(experiments))
	for _, id := range experiments {
		run, ok := runs[id]
		if !ok {
			return nil, &MissingExperimentError{Model: model, Experiment: id}
		}
		tas, imb, err := runSeries(model, id, run)
		if err != nil {
			return nil, err
		}
		n := min(len(tas), len(imb))
		a := AnomalySeries{Tas: make([]float64, n), Imbalance: make([]float64, n)}
		for i := range n {
			a.Tas[i] = tas[i] - base.Tas
			a.Imbalance[i] = imb[i] - base.Imbalance
		}
		out[id] = a
	}
	return out, nil
}

func runSeries(model ModelID, experiment ExperimentID, run Run) (tas, imbalance []float64, err error) {
	tas, ok := run.Series(VarTas)
	if !ok {
		return nil, nil, &MissingVariableError{Model: model, Experiment: experiment, Variable: VarTas}
	}
	imbalance, missing, ok := run.Imbalance()
	if !ok {
		return nil, nil, &MissingVariableError{Model: model, Experiment: experiment, Variable: missing}
	}
	return tas, imbalance, nil
}

var errNoValidYears = errors.New("no valid years")

// nanMean averages the non-NaN values.
func nanMean(values []float64) (float64, error) {
	valid := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, errNoValidYears
	}
	return stats.Mean(valid)
}

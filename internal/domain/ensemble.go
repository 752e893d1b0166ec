package domain

import (
	"math"
	"slices"
)

// ModelID identifies a climate model (CMIP6 source_id), e.g. "CanESM5".
type ModelID string

// ExperimentID identifies an experiment branch (CMIP6 experiment_id), e.g. "piControl".
type ExperimentID string

// Variable names used by the estimator.
const (
	VarTas       = "tas"       // near-surface air temperature
	VarImbalance = "imbalance" // net downward TOA radiative flux
	VarRSDT      = "rsdt"      // TOA incident shortwave
	VarRSUT      = "rsut"      // TOA outgoing shortwave
	VarRLUT      = "rlut"      // TOA outgoing longwave
)

// Run holds the annual global-mean series of one model experiment, keyed by
// variable and indexed by zero-based relative year.
type Run struct {
	Variables map[string][]float64
}

// Series returns a variable's annual series.
func (r Run) Series(variable string) ([]float64, bool) {
	s, ok := r.Variables[variable]
	return s, ok
}

// HasImbalance reports whether an imbalance series is present or derivable.
func (r Run) HasImbalance() bool {
	if _, ok := r.Variables[VarImbalance]; ok {
		return true
	}
	for _, v := range []string{VarRSDT, VarRSUT, VarRLUT} {
		if _, ok := r.Variables[v]; !ok {
			return false
		}
	}
	return true
}

// Imbalance returns the net TOA imbalance series, deriving it as
// rsdt - rsut - rlut when the run carries the three flux components instead.
// The derived series is as long as the shortest component.
func (r Run) Imbalance() ([]float64, string, bool) {
	if s, ok := r.Variables[VarImbalance]; ok {
		return s, "", true
	}
	rsdt, ok := r.Variables[VarRSDT]
	if !ok {
		return nil, VarRSDT, false
	}
	rsut, ok := r.Variables[VarRSUT]
	if !ok {
		return nil, VarRSUT, false
	}
	rlut, ok := r.Variables[VarRLUT]
	if !ok {
		return nil, VarRLUT, false
	}
	n := min(len(rsdt), len(rsut), len(rlut))
	out := make([]float64, n)
	for i := range out {
		out[i] = rsdt[i] - rsut[i] - rlut[i]
	}
	return out, "", true
}

// Ensemble groups annual series by model, then experiment.
type Ensemble map[ModelID]map[ExperimentID]Run

// Put stores values for a model/experiment/variable starting at relative year
// offset. Chunks may arrive in any order; gaps are filled with NaN and later
// chunks overwrite overlapping years.
func (e Ensemble) Put(model ModelID, experiment ExperimentID, variable string, offset int, values []float64) {
	exps, ok := e[model]
	if !ok {
		exps = make(map[ExperimentID]Run)
		e[model] = exps
	}
	run, ok := exps[experiment]
	if !ok || run.Variables == nil {
		run = Run{Variables: make(map[string][]float64)}
		exps[experiment] = run
	}
	if offset < 0 {
		offset = 0
	}

	series := run.Variables[variable]
	if need := offset + len(values); need > len(series) {
		grown := make([]float64, need)
		copy(grown, series)
		for i := len(series); i < need; i++ {
			grown[i] = math.NaN()
		}
		series = grown
	}
	copy(series[offset:], values)
	run.Variables[variable] = series
}

// Models returns the model IDs in sorted order.
func (e Ensemble) Models() []ModelID {
	ids := make([]ModelID, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Ready reports whether a model has temperature and imbalance series for
// both the reference and the forced experiment.
func (e Ensemble) Ready(model ModelID, reference, forced ExperimentID) bool {
	exps := e[model]
	for _, id := range []ExperimentID{reference, forced} {
		run, ok := exps[id]
		if !ok {
			return false
		}
		if _, ok := run.Variables[VarTas]; !ok || !run.HasImbalance() {
			return false
		}
	}
	return true
}

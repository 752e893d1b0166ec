package domain

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTimeAxis is the axis name the reducer keeps when none is given.
const DefaultTimeAxis = "time"

// LatitudeNames lists the recognized latitude axis names in priority order.
// Upstream datasets are not consistent about the name, so each is tried in
// turn rather than guessing from coordinate values.
var LatitudeNames = []string{"lat", "latitude"}

// ResolveLatitude returns the first recognized latitude axis on the field.
func ResolveLatitude(f *Field) (string, error) {
	for _, name := range LatitudeNames {
		if f.HasAxis(name) {
			return name, nil
		}
	}
	return "", &MissingCoordinateError{Field: f.Name, Tried: slices.Clone(LatitudeNames)}
}

// LatitudeWeights returns cos(lat) weights rescaled so their mean is exactly 1.
// Cosine weights approximate the area of latitude bands on a sphere; the
// rescaling keeps a weighted mean on the same scale as an unweighted one.
func LatitudeWeights(lat []float64) ([]float64, error) {
	if len(lat) == 0 {
		return nil, fmt.Errorf("%w: empty latitude axis", ErrDegenerateWeights)
	}
	w := make([]float64, len(lat))
	for i, deg := range lat {
		w[i] = math.Cos(deg * math.Pi / 180)
	}
	if floats.HasNaN(w) {
		return nil, fmt.Errorf("%w: latitude coordinates contain missing values", ErrDegenerateWeights)
	}

	// A uniform grid gets unit weights exactly, so the weighted mean matches
	// the unweighted mean bit for bit.
	if floats.Min(w) == floats.Max(w) {
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}

	mean := stat.Mean(w, nil)
	if mean == 0 || math.IsInf(1/mean, 0) {
		return nil, fmt.Errorf("%w: mean cosine weight is zero", ErrDegenerateWeights)
	}
	floats.Scale(1/mean, w)
	return w, nil
}

// WeightFunc builds normalized latitude weights from latitude coordinates.
type WeightFunc func(lat []float64) ([]float64, error)

// Reducer collapses a field to a global-mean series over its time axis.
// The zero value keeps the "time" axis and computes weights on every call.
type Reducer struct {
	// TimeAxis is kept by the reduction. Defaults to DefaultTimeAxis.
	TimeAxis string
	// Passthrough axes are kept alongside the time axis (e.g. a variable axis).
	// Latitude names are rejected: the weights only make sense averaged out.
	Passthrough []string
	// Weights overrides weight construction, e.g. with a cache.
	Weights WeightFunc
}

// GlobalMean reduces f over every axis except timeAxis and passthrough using
// the default Reducer.
func GlobalMean(f *Field, timeAxis string, passthrough ...string) (*Field, error) {
	return Reducer{TimeAxis: timeAxis, Passthrough: passthrough}.Reduce(f)
}

// Reduce multiplies f by broadcast latitude weights and averages over every
// axis that is neither the time axis nor a passthrough axis. The result keeps
// only those axes. A field with nothing left to reduce is returned as a copy,
// so reducing an already-reduced series is a no-op.
func (r Reducer) Reduce(f *Field) (*Field, error) {
	timeAxis := r.TimeAxis
	if timeAxis == "" {
		timeAxis = DefaultTimeAxis
	}
	if !f.HasAxis(timeAxis) {
		return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownAxis, timeAxis)
	}

	keep := map[string]bool{timeAxis: true}
	for _, p := range r.Passthrough {
		if slices.Contains(LatitudeNames, p) {
			return nil, fmt.Errorf("field %q: %w: %q", f.Name, ErrLatitudeKept, p)
		}
		keep[p] = true
	}
	var dims []string
	for _, a := range f.Axes {
		if !keep[a.Name] {
			dims = append(dims, a.Name)
		}
	}
	if len(dims) == 0 {
		return f.Clone(), nil
	}

	latName, err := ResolveLatitude(f)
	if err != nil {
		return nil, err
	}
	lat, err := f.Coords(latName)
	if err != nil {
		return nil, err
	}

	weightFn := r.Weights
	if weightFn == nil {
		weightFn = LatitudeWeights
	}
	w, err := weightFn(lat)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}

	weighted, err := f.MulAxis(latName, w)
	if err != nil {
		return nil, err
	}
	return weighted.Mean(dims...)
}

package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultDoublings is the number of CO2 doublings assumed when an Estimator
// is not told otherwise. Two doublings (a quadrupling) make the estimate
// -0.5 * (intercept / slope).
const DefaultDoublings = 2.0

// Regression is the result of a Gregory fit of imbalance against temperature.
type Regression struct {
	Slope        float64
	Intercept    float64
	Observations int
	Sensitivity  float64
}

// FitLine fits imbalance = slope*tas + intercept by ordinary least squares.
// An index where either series is NaN is dropped from both, since the fit
// needs paired observations.
func FitLine(tas, imbalance []float64) (slope, intercept float64, n int, err error) {
	if len(tas) != len(imbalance) {
		return 0, 0, 0, fmt.Errorf("%w: tas has %d values, imbalance has %d", ErrShapeMismatch, len(tas), len(imbalance))
	}

	x := make([]float64, 0, len(tas))
	y := make([]float64, 0, len(tas))
	for i := range tas {
		if math.IsNaN(tas[i]) || math.IsNaN(imbalance[i]) {
			continue
		}
		x = append(x, tas[i])
		y = append(y, imbalance[i])
	}
	n = len(x)
	if n < 2 {
		return 0, 0, n, &DegenerateFitError{Reason: "fewer than two paired observations", Valid: n}
	}

	intercept, slope = stat.LinearRegression(x, y, nil, false)
	if slope == 0 {
		return slope, intercept, n, &DegenerateFitError{Reason: "zero slope", Valid: n}
	}
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return slope, intercept, n, &DegenerateFitError{Reason: "undefined slope (no temperature variance)", Valid: n}
	}
	return slope, intercept, n, nil
}

// Estimator turns a Gregory fit into an equilibrium sensitivity per CO2 doubling.
type Estimator struct {
	// Doublings is log2 of the forcing experiment's CO2 multiple. Zero means
	// DefaultDoublings.
	Doublings float64
}

// Estimate fits the windowed anomaly series and extrapolates to zero
// imbalance: tas_eq = -intercept/slope, divided by the number of doublings.
func (e Estimator) Estimate(tas, imbalance []float64) (Regression, error) {
	doublings := e.Doublings
	if doublings == 0 {
		doublings = DefaultDoublings
	}
	if math.IsNaN(doublings) || math.IsInf(doublings, 0) {
		return Regression{}, fmt.Errorf("invalid forcing doublings %v", e.Doublings)
	}

	slope, intercept, n, err := FitLine(tas, imbalance)
	if err != nil {
		return Regression{}, err
	}

	sensitivity := -(intercept / slope) / doublings
	if math.IsNaN(sensitivity) || math.IsInf(sensitivity, 0) {
		return Regression{}, &DegenerateFitError{Reason: "non-finite sensitivity", Valid: n}
	}
	return Regression{
		Slope:        slope,
		Intercept:    intercept,
		Observations: n,
		Sensitivity:  sensitivity,
	}, nil
}

// Window returns a copy of series[start:start+years], clipped to the series.
// Relative years are zero-based from the start of each run.
func Window(series []float64, start, years int) []float64 {
	if start < 0 {
		start = 0
	}
	if start >= len(series) || years <= 0 {
		return []float64{}
	}
	end := min(start+years, len(series))
	out := make([]float64, end-start)
	copy(out, series[start:end])
	return out
}

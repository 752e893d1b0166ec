package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShapeMismatch reports values or weights that do not fit the axes they are applied to.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownAxis reports an operation naming an axis the field does not carry.
	ErrUnknownAxis = errors.New("unknown axis")

	// ErrDegenerateWeights reports a latitude grid whose cosine weights cannot be normalized.
	ErrDegenerateWeights = errors.New("degenerate latitude weights")

	// ErrLatitudeKept reports a reduction asked to keep the latitude axis it weights by.
	ErrLatitudeKept = errors.New("latitude axis cannot be kept")
)

// MissingCoordinateError is returned by the reducer when none of the
// recognized latitude axis names is present on the input field. It signals a
// caller contract violation and is not absorbed by the per-model batch loop.
type MissingCoordinateError struct {
	Field string
	Tried []string
}

func (e *MissingCoordinateError) Error() string {
	return fmt.Sprintf("field %q has no latitude axis (tried %s)", e.Field, strings.Join(e.Tried, ", "))
}

// MissingExperimentError is returned when a model lacks an experiment branch
// required for baseline subtraction or estimation.
type MissingExperimentError struct {
	Model      ModelID
	Experiment ExperimentID
}

func (e *MissingExperimentError) Error() string {
	return fmt.Sprintf("model %s: missing %s experiment", e.Model, e.Experiment)
}

// MissingVariableError is returned when a run lacks a variable needed to
// build its temperature or radiative-imbalance series.
type MissingVariableError struct {
	Model      ModelID
	Experiment ExperimentID
	Variable   string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("model %s: experiment %s has no %s series", e.Model, e.Experiment, e.Variable)
}

// DegenerateFitError is returned when a Gregory regression cannot produce a
// finite sensitivity: too few paired observations or a zero/undefined slope.
type DegenerateFitError struct {
	Reason string
	Valid  int
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("degenerate fit: %s (%d valid pairs)", e.Reason, e.Valid)
}

// FailureReason classifies a per-model estimation error for logs and metric labels.
func FailureReason(err error) string {
	var (
		missingExp *MissingExperimentError
		missingVar *MissingVariableError
		degenerate *DegenerateFitError
		missingCrd *MissingCoordinateError
	)
	switch {
	case errors.As(err, &missingExp):
		return "missing_experiment"
	case errors.As(err, &missingVar):
		return "missing_variable"
	case errors.As(err, &degenerate):
		return "degenerate_fit"
	case errors.As(err, &missingCrd):
		return "missing_coordinate"
	default:
		return "other"
	}
}

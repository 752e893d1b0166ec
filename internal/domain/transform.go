package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultStepsPerYear is the time resolution assumed for field messages (monthly).
const DefaultStepsPerYear = 12

// ParseRawEvent deserializes a RawEvent's value into a FieldMessage and
// validates its identifiers and field.
func ParseRawEvent(raw RawEvent) (FieldMessage, error) {
	var msg FieldMessage
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return FieldMessage{}, fmt.Errorf("parse field message: %w", err)
	}

	msg.SourceID = ModelID(strings.TrimSpace(string(msg.SourceID)))
	msg.ExperimentID = ExperimentID(strings.TrimSpace(string(msg.ExperimentID)))
	msg.VariableID = NormalizeVariable(msg.VariableID)
	if msg.TimeAxis == "" {
		msg.TimeAxis = DefaultTimeAxis
	}
	if msg.StepsPerYear == 0 {
		msg.StepsPerYear = DefaultStepsPerYear
	}

	var errs []error
	if msg.SourceID == "" {
		errs = append(errs, errors.New("source_id is required"))
	}
	if msg.ExperimentID == "" {
		errs = append(errs, errors.New("experiment_id is required"))
	}
	if msg.VariableID == "" {
		errs = append(errs, errors.New("variable_id is required"))
	}
	if msg.StepsPerYear < 0 {
		errs = append(errs, fmt.Errorf("steps_per_year must be positive, got %d", msg.StepsPerYear))
	}
	if msg.YearOffset < 0 {
		errs = append(errs, fmt.Errorf("year_offset must not be negative, got %d", msg.YearOffset))
	}
	if msg.Field == nil {
		errs = append(errs, errors.New("field is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return FieldMessage{}, fmt.Errorf("parse field message: %w", err)
	}
	return msg, nil
}

// ToRunSeries reduces the message's field to a global mean over its time axis
// and averages it into annual values.
func ToRunSeries(msg FieldMessage, reducer Reducer) (RunSeries, error) {
	reducer.TimeAxis = msg.TimeAxis
	reducer.Passthrough = nil

	series, err := reducer.Reduce(msg.Field)
	if err != nil {
		return RunSeries{}, fmt.Errorf("reduce %s/%s/%s: %w", msg.SourceID, msg.ExperimentID, msg.VariableID, err)
	}
	if msg.StepsPerYear > 1 {
		series, err = series.Coarsen(msg.TimeAxis, msg.StepsPerYear, "year")
		if err != nil {
			return RunSeries{}, fmt.Errorf("annual mean %s/%s/%s: %w", msg.SourceID, msg.ExperimentID, msg.VariableID, err)
		}
	}

	return RunSeries{
		SourceID:     msg.SourceID,
		ExperimentID: msg.ExperimentID,
		MemberID:     msg.MemberID,
		VariableID:   msg.VariableID,
		YearOffset:   msg.YearOffset,
		Values:       series.Values,
	}, nil
}

// NormalizeVariable lower-cases CMIP variable IDs and maps common aliases of
// the net TOA flux onto VarImbalance.
func NormalizeVariable(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "imbalance", "rtmt", "toa_net":
		return VarImbalance
	default:
		return v
	}
}

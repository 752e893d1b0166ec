package domain

import "time"

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// FieldMessage is the JSON payload on the source topic: one variable of one
// model experiment, as a gridded field or an already-reduced series. Long
// runs are split into chunks placed by YearOffset.
type FieldMessage struct {
	SourceID     ModelID      `json:"source_id"`
	ExperimentID ExperimentID `json:"experiment_id"`
	MemberID     string       `json:"member_id,omitempty"`
	VariableID   string       `json:"variable_id"`
	TimeAxis     string       `json:"time_axis,omitempty"`      // defaults to "time"
	StepsPerYear int          `json:"steps_per_year,omitempty"` // 12 for monthly data, 1 for annual; defaults to 12
	YearOffset   int          `json:"year_offset,omitempty"`    // relative year of the first complete year in Field
	Field        *Field       `json:"field"`
}

// RunSeries is an annual global-mean series for one model experiment variable.
type RunSeries struct {
	SourceID     ModelID
	ExperimentID ExperimentID
	MemberID     string
	VariableID   string
	YearOffset   int
	Values       []float64
}

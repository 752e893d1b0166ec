package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Axis is a named dimension of a Field. Numeric axes (time, lat, lon, year)
// carry Coords; categorical axes (experiment_id, variable) carry Labels.
type Axis struct {
	Name   string    `json:"name"`
	Coords []float64 `json:"coords,omitempty"`
	Labels []string  `json:"labels,omitempty"`
}

// Len returns the number of positions along the axis.
func (a Axis) Len() int {
	if a.Labels != nil {
		return len(a.Labels)
	}
	return len(a.Coords)
}

func (a Axis) clone() Axis {
	return Axis{Name: a.Name, Coords: slices.Clone(a.Coords), Labels: slices.Clone(a.Labels)}
}

// Field is a dense array of float64 values addressed by named axes, stored in
// row-major order (the last axis varies fastest). Missing values are NaN.
//
// Fields are treated as immutable: every operation returns a new Field.
type Field struct {
	Name   string
	Units  string
	Axes   []Axis
	Values []float64
}

// NewField validates the axes against the number of values and returns the field.
func NewField(name string, axes []Axis, values []float64) (*Field, error) {
	seen := make(map[string]struct{}, len(axes))
	size := 1
	for _, a := range axes {
		if a.Name == "" {
			return nil, fmt.Errorf("field %q: %w: unnamed axis", name, ErrShapeMismatch)
		}
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("field %q: %w: duplicate axis %q", name, ErrShapeMismatch, a.Name)
		}
		seen[a.Name] = struct{}{}
		if a.Labels != nil && a.Coords != nil && len(a.Labels) != len(a.Coords) {
			return nil, fmt.Errorf("field %q: %w: axis %q has %d labels and %d coords",
				name, ErrShapeMismatch, a.Name, len(a.Labels), len(a.Coords))
		}
		size *= a.Len()
	}
	if size != len(values) {
		return nil, fmt.Errorf("field %q: %w: axes hold %d values, got %d", name, ErrShapeMismatch, size, len(values))
	}
	return &Field{Name: name, Axes: axes, Values: values}, nil
}

// Shape returns the length of each axis in order.
func (f *Field) Shape() []int {
	shape := make([]int, len(f.Axes))
	for i, a := range f.Axes {
		shape[i] = a.Len()
	}
	return shape
}

// AxisIndex returns the position of the named axis, or -1.
func (f *Field) AxisIndex(name string) int {
	for i, a := range f.Axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// HasAxis reports whether the field carries the named axis.
func (f *Field) HasAxis(name string) bool {
	return f.AxisIndex(name) >= 0
}

// Coords returns the numeric coordinates of the named axis.
func (f *Field) Coords(name string) ([]float64, error) {
	i := f.AxisIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownAxis, name)
	}
	return f.Axes[i].Coords, nil
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	axes := make([]Axis, len(f.Axes))
	for i, a := range f.Axes {
		axes[i] = a.clone()
	}
	return &Field{Name: f.Name, Units: f.Units, Axes: axes, Values: slices.Clone(f.Values)}
}

// MulAxis multiplies every value by the weight at its position along the
// named axis, broadcasting the weights over all other axes.
func (f *Field) MulAxis(name string, weights []float64) (*Field, error) {
	k := f.AxisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownAxis, name)
	}
	shape := f.Shape()
	if len(weights) != shape[k] {
		return nil, fmt.Errorf("field %q: %w: axis %q has length %d, got %d weights",
			f.Name, ErrShapeMismatch, name, shape[k], len(weights))
	}
	stride := strides(shape)[k]

	out := f.Clone()
	for i, v := range f.Values {
		out.Values[i] = v * weights[(i/stride)%shape[k]]
	}
	return out, nil
}

// Mean averages the field over the named axes, skipping missing values.
// Positions where every contributing value is missing become NaN. The
// remaining axes keep their order.
func (f *Field) Mean(dims ...string) (*Field, error) {
	if len(dims) == 0 {
		return f.Clone(), nil
	}
	reduce := make([]bool, len(f.Axes))
	for _, d := range dims {
		k := f.AxisIndex(d)
		if k < 0 {
			return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownAxis, d)
		}
		reduce[k] = true
	}

	var outAxes []Axis
	for k, a := range f.Axes {
		if !reduce[k] {
			outAxes = append(outAxes, a.clone())
		}
	}
	outShape := make([]int, len(outAxes))
	outLen := 1
	for i, a := range outAxes {
		outShape[i] = a.Len()
		outLen *= outShape[i]
	}
	outStrides := strides(outShape)

	shape := f.Shape()
	inStrides := strides(shape)
	sums := make([]float64, outLen)
	counts := make([]int, outLen)
	for i, v := range f.Values {
		if math.IsNaN(v) {
			continue
		}
		o, ok := 0, 0
		for k := range shape {
			if reduce[k] {
				continue
			}
			o += ((i / inStrides[k]) % shape[k]) * outStrides[ok]
			ok++
		}
		sums[o] += v
		counts[o]++
	}

	values := make([]float64, outLen)
	for i := range values {
		if counts[i] == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = sums[i] / float64(counts[i])
	}
	return &Field{Name: f.Name, Units: f.Units, Axes: outAxes, Values: values}, nil
}

// Coarsen averages consecutive blocks of window positions along the named
// axis, skipping missing values, and renames the axis to newName with
// zero-based block indices as coordinates. A trailing partial block is
// dropped.
func (f *Field) Coarsen(name string, window int, newName string) (*Field, error) {
	k := f.AxisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownAxis, name)
	}
	if window < 1 {
		return nil, fmt.Errorf("field %q: coarsen window must be positive, got %d", f.Name, window)
	}
	shape := f.Shape()
	blocks := shape[k] / window
	if blocks == 0 {
		return nil, fmt.Errorf("field %q: %w: axis %q has %d steps, shorter than window %d",
			f.Name, ErrShapeMismatch, name, shape[k], window)
	}

	outAxes := make([]Axis, len(f.Axes))
	for i, a := range f.Axes {
		outAxes[i] = a.clone()
	}
	if newName == "" {
		newName = name
	}
	index := make([]float64, blocks)
	for b := range index {
		index[b] = float64(b)
	}
	outAxes[k] = Axis{Name: newName, Coords: index}

	outShape := slices.Clone(shape)
	outShape[k] = blocks
	outLen := 1
	for _, n := range outShape {
		outLen *= n
	}
	inStrides := strides(shape)
	outStrides := strides(outShape)

	sums := make([]float64, outLen)
	counts := make([]int, outLen)
	for i, v := range f.Values {
		if math.IsNaN(v) {
			continue
		}
		pos := (i / inStrides[k]) % shape[k]
		b := pos / window
		if b >= blocks {
			continue
		}
		o := 0
		for j := range shape {
			idx := (i / inStrides[j]) % shape[j]
			if j == k {
				idx = b
			}
			o += idx * outStrides[j]
		}
		sums[o] += v
		counts[o]++
	}

	values := make([]float64, outLen)
	for i := range values {
		if counts[i] == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = sums[i] / float64(counts[i])
	}
	return &Field{Name: f.Name, Units: f.Units, Axes: outAxes, Values: values}, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// fieldJSON is the wire form of a Field. Missing values travel as null since
// JSON has no NaN.
type fieldJSON struct {
	Name   string     `json:"name"`
	Units  string     `json:"units,omitempty"`
	Axes   []Axis     `json:"axes"`
	Values []*float64 `json:"values"`
}

// MarshalJSON encodes NaN values as null.
func (f Field) MarshalJSON() ([]byte, error) {
	values := make([]*float64, len(f.Values))
	for i := range f.Values {
		if math.IsNaN(f.Values[i]) {
			continue
		}
		values[i] = &f.Values[i]
	}
	return json.Marshal(fieldJSON{Name: f.Name, Units: f.Units, Axes: f.Axes, Values: values})
}

// UnmarshalJSON decodes null values as NaN and validates the shape.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make([]float64, len(raw.Values))
	for i, v := range raw.Values {
		if v == nil {
			values[i] = math.NaN()
			continue
		}
		values[i] = *v
	}
	parsed, err := NewField(raw.Name, raw.Axes, values)
	if err != nil {
		return err
	}
	parsed.Units = raw.Units
	*f = *parsed
	return nil
}

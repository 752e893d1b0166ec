package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// ErrUnsupportedType is returned for variables that are not numeric arrays.
var ErrUnsupportedType = errors.New("unsupported variable type")

// Loader reads CMIP6-style NetCDF files into domain fields.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a NetCDF loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadField reads one variable with its coordinate axes. Axes without a
// coordinate variable get zero-based indices. Packed values are unpacked
// with scale_factor/add_offset, and _FillValue/missing_value become NaN.
func (l *Loader) LoadField(ctx context.Context, path, variable string) (*domain.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	v, err := nc.GetVariable(variable)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", variable, path, err)
	}
	values, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", variable, path, err)
	}
	if len(shape) != len(v.Dimensions) {
		return nil, fmt.Errorf("read %s from %s: %d dimensions named for a rank-%d array",
			variable, path, len(v.Dimensions), len(shape))
	}
	unpack(values, v.Attributes)

	axes := make([]domain.Axis, len(shape))
	for i, dim := range v.Dimensions {
		axes[i] = domain.Axis{Name: dim, Coords: l.coords(nc, path, dim, shape[i])}
	}

	f, err := domain.NewField(variable, axes, values)
	if err != nil {
		return nil, err
	}
	f.Units = attrString(v.Attributes, "units")

	l.logger.Debug("loaded field",
		"path", path,
		"variable", variable,
		"dims", v.Dimensions,
		"shape", shape,
	)
	return f, nil
}

func (l *Loader) coords(nc api.Group, path, dim string, n int) []float64 {
	index := make([]float64, n)
	for i := range index {
		index[i] = float64(i)
	}

	cv, err := nc.GetVariable(dim)
	if err != nil {
		return index
	}
	values, shape, err := flatten(cv.Values)
	if err != nil || len(shape) != 1 || shape[0] != n {
		l.logger.Warn("ignoring unusable coordinate variable", "path", path, "dim", dim)
		return index
	}
	return values
}

// flatten converts a (possibly nested) numeric slice into row-major values
// and its shape. Nested slices must be rectangular.
func flatten(v any) ([]float64, []int, error) {
	if v == nil {
		return nil, nil, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		x, ok := toFloat(rv)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
		}
		return []float64{x}, []int{}, nil
	}

	var shape []int
	for t, s := rv.Type(), rv; t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, s.Len())
		if s.Len() > 0 {
			s = s.Index(0)
		}
	}
	size := 1
	for _, n := range shape {
		size *= n
	}

	out := make([]float64, 0, size)
	var walk func(s reflect.Value, depth int) error
	walk = func(s reflect.Value, depth int) error {
		if s.Len() != shape[depth] {
			return fmt.Errorf("%w: ragged array at depth %d", ErrUnsupportedType, depth)
		}
		for i := range s.Len() {
			e := s.Index(i)
			if depth+1 < len(shape) {
				if err := walk(e, depth+1); err != nil {
					return err
				}
				continue
			}
			x, ok := toFloat(e)
			if !ok {
				return fmt.Errorf("%w: element kind %s", ErrUnsupportedType, e.Kind())
			}
			out = append(out, x)
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

// attributes is the read side of api.AttributeMap.
type attributes interface {
	Get(key string) (any, bool)
}

// unpack applies CF packing conventions in place: fill values are compared
// against the stored (packed) value before scaling.
func unpack(values []float64, attrs attributes) {
	if isNil(attrs) {
		return
	}
	var fills []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrFloat(attrs, key); ok {
			fills = append(fills, f)
		}
	}
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}

	for i, v := range values {
		if isFill(v, fills) {
			values[i] = math.NaN()
			continue
		}
		values[i] = v*scale + offset
	}
}

// isFill compares with a relative tolerance because float32 fill values such
// as 1e20 do not survive the widening to float64 exactly.
func isFill(v float64, fills []float64) bool {
	for _, f := range fills {
		if v == f || (f != 0 && math.Abs((v-f)/f) < 1e-6) {
			return true
		}
	}
	return false
}

func isNil(attrs attributes) bool {
	if attrs == nil {
		return true
	}
	rv := reflect.ValueOf(attrs)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func attrFloat(attrs attributes, key string) (float64, bool) {
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	return toFloat(rv)
}

func attrString(attrs attributes, key string) string {
	if isNil(attrs) {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

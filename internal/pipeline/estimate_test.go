package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/couchcryptid/climate-ecs-etl/internal/catalog"
	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearEnsemble(models ...domain.ModelID) domain.Ensemble {
	ens := make(domain.Ensemble)
	for _, m := range models {
		ens.Put(m, reference, domain.VarTas, 0, []float64{14, 14, 14, 14})
		ens.Put(m, reference, domain.VarImbalance, 0, []float64{0.5, 0.5, 0.5, 0.5})
		ens.Put(m, forced, domain.VarTas, 0, []float64{14, 15, 16, 17})
		ens.Put(m, forced, domain.VarImbalance, 0, []float64{4.5, 2.5, 0.5, -1.5})
	}
	return ens
}

func TestModelEstimator_CollectsFailures(t *testing.T) {
	ens := linearEnsemble("CanESM5", "MIROC6")
	ens.Put("NorESM2-LM", reference, domain.VarTas, 0, []float64{14})

	metrics := newTestMetrics()
	est := pipeline.NewModelEstimator(testConfig().Gregory, 3, slog.Default(), metrics)
	estimates, failures, err := est.EstimateModels(context.Background(), ens, []domain.ModelID{"MIROC6", "NorESM2-LM", "CanESM5"})
	require.NoError(t, err)

	require.Len(t, estimates, 2)
	assert.Equal(t, domain.ModelID("MIROC6"), estimates[0].SourceID, "results keep the requested order")
	assert.Equal(t, domain.ModelID("CanESM5"), estimates[1].SourceID)

	require.Len(t, failures, 1)
	assert.Equal(t, domain.ModelID("NorESM2-LM"), failures[0].Model)
	var missing *domain.MissingExperimentError
	require.ErrorAs(t, failures[0].Err, &missing)
	assert.Equal(t, forced, missing.Experiment)

	assert.InDelta(t, 2.0, counterValue(t, metrics.ModelEstimates.WithLabelValues("success")), 0)
	assert.InDelta(t, 1.0, counterValue(t, metrics.ModelEstimates.WithLabelValues("missing_experiment")), 0)
}

func TestModelEstimator_NilMetrics(t *testing.T) {
	est := pipeline.NewModelEstimator(testConfig().Gregory, 0, slog.Default(), nil)
	estimates, failures, err := est.EstimateModels(context.Background(), linearEnsemble("CanESM5"), []domain.ModelID{"CanESM5"})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, estimates, 1)
	assert.InDelta(t, 1.0, estimates[0].Sensitivity, 1e-12)
}

func TestModelEstimator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est := pipeline.NewModelEstimator(testConfig().Gregory, 1, slog.Default(), nil)
	_, _, err := est.EstimateModels(ctx, linearEnsemble("CanESM5"), []domain.ModelID{"CanESM5"})
	require.ErrorIs(t, err, context.Canceled)
}

// --- BuildEnsemble ---

type fakeFieldLoader struct {
	fields map[string]*domain.Field
}

func (f *fakeFieldLoader) LoadField(_ context.Context, path, variable string) (*domain.Field, error) {
	field, ok := f.fields[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, errors.New("no such file"))
	}
	if field.Name != variable {
		return nil, fmt.Errorf("%s: variable %q not found", path, variable)
	}
	return field, nil
}

// annualField builds a two-latitude annual field whose global mean in year i
// is values[i].
func annualField(t *testing.T, name string, values ...float64) *domain.Field {
	t.Helper()
	coords := make([]float64, len(values))
	data := make([]float64, 0, 2*len(values))
	for i, v := range values {
		coords[i] = float64(i)
		data = append(data, v-1, v+1)
	}
	f, err := domain.NewField(name, []domain.Axis{
		{Name: "time", Coords: coords},
		{Name: "lat", Coords: []float64{-30, 30}},
	}, data)
	require.NoError(t, err)
	return f
}

func TestBuildEnsemble(t *testing.T) {
	loader := &fakeFieldLoader{fields: map[string]*domain.Field{
		"ref_tas.nc":   annualField(t, "tas", 14, 14, 14, 14),
		"ref_rtmt.nc":  annualField(t, "rtmt", 0.5, 0.5, 0.5, 0.5),
		"4x_tas_1.nc":  annualField(t, "tas", 14, 15),
		"4x_tas_2.nc":  annualField(t, "tas", 16, 17),
		"4x_rtmt.nc":   annualField(t, "rtmt", 4.5, 2.5, 0.5, -1.5),
		"4x_areacella": annualField(t, "areacella", 1),
	}}
	groups := catalog.Groups{
		"CanESM5": {
			reference: {"tas": {"ref_tas.nc"}, "rtmt": {"ref_rtmt.nc"}},
			forced: {
				"tas":       {"4x_tas_1.nc", "4x_tas_2.nc"},
				"rtmt":      {"4x_rtmt.nc"},
				"areacella": {"4x_areacella"},
			},
		},
		"BROKEN": {
			reference: {"tas": {"missing.nc"}},
		},
	}

	ens, failures, err := pipeline.BuildEnsemble(context.Background(), loader, groups,
		pipeline.BatchOptions{StepsPerYear: 1, Workers: 2}, slog.Default())
	require.NoError(t, err)

	require.Len(t, failures, 1)
	assert.Equal(t, domain.ModelID("BROKEN"), failures[0].Model)
	assert.NotContains(t, ens, domain.ModelID("BROKEN"))

	run := ens["CanESM5"][forced]
	assert.Equal(t, []float64{14, 15, 16, 17}, run.Variables[domain.VarTas], "files are concatenated in order")
	assert.Equal(t, []float64{4.5, 2.5, 0.5, -1.5}, run.Variables[domain.VarImbalance])
	assert.NotContains(t, run.Variables, "areacella")

	est, err := domain.EstimateModel("CanESM5", ens["CanESM5"], testConfig().Gregory)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, est.Sensitivity, 1e-12)
}

func TestBuildEnsemble_MissingLatitudeAborts(t *testing.T) {
	f, err := domain.NewField("tas", []domain.Axis{
		{Name: "time", Coords: []float64{0}},
		{Name: "y", Coords: []float64{0, 1}},
	}, []float64{1, 2})
	require.NoError(t, err)

	loader := &fakeFieldLoader{fields: map[string]*domain.Field{
		"curvilinear.nc": f,
		"ok.nc":          annualField(t, "tas", 14),
	}}
	groups := catalog.Groups{
		"CanESM5":   {reference: {"tas": {"ok.nc"}}},
		"EC-Earth3": {reference: {"tas": {"curvilinear.nc"}}},
	}

	_, _, err = pipeline.BuildEnsemble(context.Background(), loader, groups,
		pipeline.BatchOptions{StepsPerYear: 1}, slog.Default())

	var missing *domain.MissingCoordinateError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "tas", missing.Field)
}

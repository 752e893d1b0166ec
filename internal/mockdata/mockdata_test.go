package mockdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

func smallOptions() Options {
	o := DefaultOptions()
	o.Models = DefaultModels()[:2]
	o.Years = 20
	o.ChunkYears = 8
	return o
}

func TestMessages_Layout(t *testing.T) {
	o := smallOptions()
	msgs, err := Messages(o)
	require.NoError(t, err)

	// 2 models x 2 experiments x 2 variables x 3 chunks (8, 8, 4 years).
	require.Len(t, msgs, 24)

	first := msgs[0]
	assert.Equal(t, domain.ModelID("CanESM5"), first.SourceID)
	assert.Equal(t, o.Reference, first.ExperimentID)
	assert.Equal(t, domain.VarTas, first.VariableID)
	assert.Equal(t, 0, first.YearOffset)
	assert.Equal(t, []int{8 * 12, 6, 4}, first.Field.Shape())
	assert.Equal(t, "K", first.Field.Units)

	last := msgs[len(msgs)-1]
	assert.Equal(t, 16, last.YearOffset)
	assert.Equal(t, []int{4 * 12, 6, 4}, last.Field.Shape())
}

func TestMessages_GlobalMeansMatchAnnualSeries(t *testing.T) {
	o := smallOptions()
	o.Models = o.Models[:1]
	msgs, err := Messages(o)
	require.NoError(t, err)

	m := o.Models[0]
	tas, _ := m.annual(o, true)
	for _, msg := range msgs {
		if msg.ExperimentID != o.Forced || msg.VariableID != domain.VarTas {
			continue
		}
		series, err := domain.ToRunSeries(msg, domain.Reducer{})
		require.NoError(t, err)
		for i, v := range series.Values {
			assert.InDelta(t, tas[msg.YearOffset+i], v, 1e-9)
		}
	}
}

func TestMessages_FluxesRecombine(t *testing.T) {
	o := smallOptions()
	o.Fluxes = true
	o.Models = o.Models[:1]
	msgs, err := Messages(o)
	require.NoError(t, err)

	ens := make(domain.Ensemble)
	for _, msg := range msgs {
		assert.NotEqual(t, domain.VarImbalance, msg.VariableID)
		series, err := domain.ToRunSeries(msg, domain.Reducer{})
		require.NoError(t, err)
		ens.Put(series.SourceID, series.ExperimentID, series.VariableID, series.YearOffset, series.Values)
	}

	_, want := o.Models[0].annual(o, true)
	got, _, ok := ens[o.Models[0].ID][o.Forced].Imbalance()
	require.True(t, ok)
	require.Len(t, got, o.Years)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}

func TestMessages_RecoversSensitivity(t *testing.T) {
	o := smallOptions()
	o.StepsPerYear = 1
	msgs, err := Messages(o)
	require.NoError(t, err)

	ens := make(domain.Ensemble)
	for _, msg := range msgs {
		series, err := domain.ToRunSeries(msg, domain.Reducer{})
		require.NoError(t, err)
		ens.Put(series.SourceID, series.ExperimentID, series.VariableID, series.YearOffset, series.Values)
	}

	cfg := domain.GregoryConfig{Reference: o.Reference, Forced: o.Forced, WindowYears: o.Years, Doublings: o.Doublings}
	for _, m := range o.Models {
		est, err := domain.EstimateModel(m.ID, ens[m.ID], cfg)
		require.NoError(t, err)
		assert.InDelta(t, m.Sensitivity, est.Sensitivity, 1e-6, m.ID)
		assert.InDelta(t, m.Feedback, est.Slope, 1e-6, m.ID)
	}
}

func TestMessages_InvalidOptions(t *testing.T) {
	o := DefaultOptions()
	o.Models = nil
	o.Years = 1
	o.Lat = []float64{-60, 30}

	_, err := Messages(o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no models")
	assert.Contains(t, err.Error(), "years")
	assert.Contains(t, err.Error(), "symmetric")
}

func TestKey(t *testing.T) {
	msg := domain.FieldMessage{SourceID: "MIROC6", ExperimentID: "piControl", VariableID: "tas", YearOffset: 50}
	assert.Equal(t, "MIROC6/piControl/tas/50", Key(msg))
}

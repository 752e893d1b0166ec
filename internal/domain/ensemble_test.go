package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsemble_Put(t *testing.T) {
	ens := Ensemble{}

	ens.Put("CanESM5", testForced, VarTas, 3, []float64{3, 4})
	ens.Put("CanESM5", testForced, VarTas, 0, []float64{0, 1})

	got, ok := ens["CanESM5"][testForced].Series(VarTas)
	require.True(t, ok)
	require.Len(t, got, 5)
	assert.Equal(t, []float64{0, 1}, got[:2])
	assert.True(t, math.IsNaN(got[2]), "gap stays missing until filled")
	assert.Equal(t, []float64{3, 4}, got[3:])

	ens.Put("CanESM5", testForced, VarTas, 2, []float64{2, 30})
	got, _ = ens["CanESM5"][testForced].Series(VarTas)
	assert.Equal(t, []float64{0, 1, 2, 30, 4}, got, "later chunks overwrite")
}

func TestEnsemble_Ready(t *testing.T) {
	ens := Ensemble{}
	assert.False(t, ens.Ready("CanESM5", testReference, testForced))

	ens.Put("CanESM5", testReference, VarTas, 0, []float64{14})
	ens.Put("CanESM5", testReference, VarImbalance, 0, []float64{0})
	ens.Put("CanESM5", testForced, VarTas, 0, []float64{15})
	assert.False(t, ens.Ready("CanESM5", testReference, testForced), "forced run has no imbalance yet")

	ens.Put("CanESM5", testForced, VarRSDT, 0, []float64{340})
	ens.Put("CanESM5", testForced, VarRSUT, 0, []float64{100})
	assert.False(t, ens.Ready("CanESM5", testReference, testForced))

	ens.Put("CanESM5", testForced, VarRLUT, 0, []float64{236})
	assert.True(t, ens.Ready("CanESM5", testReference, testForced), "imbalance derivable from fluxes")
}

func TestEnsemble_Models(t *testing.T) {
	ens := Ensemble{}
	for _, m := range []ModelID{"MIROC6", "CanESM5", "GFDL-CM4"} {
		ens.Put(m, testReference, VarTas, 0, []float64{1})
	}
	assert.Equal(t, []ModelID{"CanESM5", "GFDL-CM4", "MIROC6"}, ens.Models())
}

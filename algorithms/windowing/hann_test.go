package windowing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/algorithms/windowing"
)

func TestPeriodicHann(t *testing.T) {
	h := windowing.NewHann(4, false)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, h.Coefficients(), 1e-12)
}

func TestSymmetricHann(t *testing.T) {
	h := windowing.NewHann(5, true)
	c := h.Coefficients()
	assert.InDelta(t, 0, c[0], 1e-12)
	assert.InDelta(t, 1, c[2], 1e-12)
	assert.InDelta(t, 0, c[4], 1e-12)
}

func TestApplyInPlaceLengthMismatch(t *testing.T) {
	h := windowing.NewHann(8, false)
	require.Error(t, h.ApplyInPlace(make([]float64, 4)))
	assert.Nil(t, h.Apply(make([]float64, 3)))
}

func TestHannTablesAreIndependentCopies(t *testing.T) {
	a := windowing.NewHann(16, false)
	c := a.Coefficients()
	c[0] = 42
	b := windowing.NewHann(16, false)
	assert.Equal(t, 0.0, b.Coefficients()[0])
	assert.Equal(t, 16, b.Size())
}

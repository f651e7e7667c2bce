package common_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/algorithms/common"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, common.Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, common.Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(common.Median(nil)))

	in := []float64{3, 1, 2}
	common.Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input must not be reordered")
}

func TestMedianFilterReflect(t *testing.T) {
	out := common.MedianFilter([]float64{1, 5, 2, 8, 3}, 3)
	// edges see [1 1 5] and [8 3 3]
	assert.Equal(t, []float64{1, 2, 5, 3, 3}, out)

	// window longer than the signal still reflects
	out = common.MedianFilter([]float64{4, 0}, 7)
	assert.Len(t, out, 2)
}

func TestConvolveSame(t *testing.T) {
	out := common.ConvolveSame([]float64{1, 2, 3}, []float64{0, 1, 0})
	assert.Equal(t, []float64{1, 2, 3}, out)

	out = common.ConvolveSame([]float64{1, 0, 0, 0}, []float64{1, 1, 1})
	assert.Equal(t, []float64{1, 1, 0, 0}, out)
}

func TestLocalMax(t *testing.T) {
	assert.Equal(t, []bool{false, true, false, false, true}, common.LocalMax([]float64{1, 3, 2, 2, 4}))
}

func TestDeltaOfRamp(t *testing.T) {
	frames := make([][]float64, 12)
	for i := range frames {
		frames[i] = []float64{2 * float64(i), 5}
	}

	d, err := common.Delta(frames, 9)
	require.NoError(t, err)
	for _, row := range d {
		assert.InDelta(t, 2.0, row[0], 1e-12)
		assert.InDelta(t, 0.0, row[1], 1e-12)
	}
}

func TestDeltaTooShort(t *testing.T) {
	_, err := common.Delta(make([][]float64, 5), 9)
	assert.Error(t, err)

	_, err = common.Delta(make([][]float64, 20), 4)
	assert.Error(t, err)
}

func TestFixFrames(t *testing.T) {
	assert.Equal(t, []int{0, 3, 7, 10}, common.FixFrames([]int{7, 3, 3, 12, -1}, 10))
}

func TestSyncMedian(t *testing.T) {
	frames := [][]float64{{1}, {9}, {2}, {4}, {6}, {100}}

	out, err := common.Sync(frames, []int{2, 5}, common.Median)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, 5.0, out[0][0])   // median(1, 9)
	assert.Equal(t, 4.0, out[1][0])   // median(2, 4, 6)
	assert.Equal(t, 100.0, out[2][0]) // median(100)

	_, err = common.Sync(frames, nil, common.Median)
	assert.Error(t, err)
}

func TestTranspose(t *testing.T) {
	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, common.Transpose([][]float64{{1, 2}, {3, 4}}))
	assert.Nil(t, common.Transpose(nil))
}

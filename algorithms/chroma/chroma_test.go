package chroma_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/proxemy/muse/algorithms/chroma"
)

const sampleRate = 22050

func tone(freq float64, seconds float64) []float64 {
	out := make([]float64, int(seconds*sampleRate))
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func argmax(v []float64) int {
	return floats.MaxIdx(v)
}

func TestChromaSTFTFindsPitchClass(t *testing.T) {
	cs := chroma.NewChromaSTFTDefault(sampleRate)
	gram, err := cs.ComputeChroma(tone(440, 1), 2048, 512)
	require.NoError(t, err)
	require.Len(t, gram, 1+sampleRate/512)

	mid := gram[len(gram)/2]
	require.Len(t, mid, chroma.NumChroma)
	assert.Equal(t, 9, argmax(mid), "A expected, got %s", chroma.Labels()[argmax(mid)])
	assert.InDelta(t, 1.0, floats.Max(mid), 1e-12)
}

func TestChromaSTFTSilence(t *testing.T) {
	cs := chroma.NewChromaSTFTDefault(sampleRate)
	gram, err := cs.ComputeChroma(make([]float64, 4096), 2048, 512)
	require.NoError(t, err)
	for _, frame := range gram {
		for _, v := range frame {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestChromaCQTFindsPitchClass(t *testing.T) {
	cqt, err := chroma.NewChromaCQTDefault(sampleRate)
	require.NoError(t, err)
	assert.Equal(t, 7*36, cqt.NumBands())

	// C5
	gram, err := cqt.ComputeChroma(tone(523.25, 1), 512)
	require.NoError(t, err)
	assert.Equal(t, 0, argmax(gram[len(gram)/2]))
}

func TestChromaCQTRejectsBadResolution(t *testing.T) {
	_, err := chroma.NewChromaCQT(sampleRate, 4096, 32.7, 7, 20)
	assert.Error(t, err)
}

func TestCENSUnitNorm(t *testing.T) {
	gram := make([][]float64, 60)
	for i := range gram {
		gram[i] = make([]float64, chroma.NumChroma)
		gram[i][i%chroma.NumChroma] = 1
		gram[i][(i+4)%chroma.NumChroma] = 0.3
	}

	cens, err := chroma.CENS(gram, chroma.DefaultCENSParams())
	require.NoError(t, err)
	require.Len(t, cens, 60)
	for _, frame := range cens {
		assert.InDelta(t, 1.0, floats.Norm(frame, 2), 1e-9)
	}

	_, err = chroma.CENS(nil, chroma.DefaultCENSParams())
	assert.Error(t, err)
}
